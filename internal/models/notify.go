package models

// NotifyLevel уровень прерывания push-уведомления.
type NotifyLevel string

const (
	LevelPassive       NotifyLevel = "passive"
	LevelActive        NotifyLevel = "active"
	LevelTimeSensitive NotifyLevel = "timeSensitive"
)

// NotifyMeta опции доставки. Sound == nil значит звук по умолчанию, "" без звука.
type NotifyMeta struct {
	Sound    *string
	Level    NotifyLevel
	Group    string
	Badge    *int
	URL      string
	AutoCopy string
}

// Silent явно тихое уведомление.
func (m NotifyMeta) Silent() bool { return m.Sound != nil && *m.Sound == "" }

// Notification то, что уходит в мультиплексор каналов.
type Notification struct {
	Title string
	Body  string
	Meta  NotifyMeta
}
