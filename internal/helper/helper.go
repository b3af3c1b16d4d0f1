package helper

import (
	"sort"
	"strings"
)

// BaseAsset "ETH-USDT" -> "ETH".
func BaseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexAny(s, "-_/"); i > 0 {
		return s[:i]
	}
	return s
}

// NormSymbol приводит к виду биржи: верхний регистр, разделитель "-".
func NormSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

// UniqueSorted нормализует, убирает пустые и дубли.
func UniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = NormSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Float64Ptr для опциональных полей.
func Float64Ptr(v float64) *float64 { return &v }

func StringPtr(v string) *string { return &v }
