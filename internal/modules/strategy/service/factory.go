package service

func NewEngine() Engine {
	return NewScorer(DefaultScorerParams())
}
