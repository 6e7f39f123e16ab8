package pipeline

import (
	"strings"

	"github.com/timmy/planscan/internal/domain"
)

// Dedup keeps the first room seen for each canonical key. Attributes of later
// duplicates are dropped, never merged.
func Dedup(rooms []domain.ExtractedRoom) []domain.ExtractedRoom {
	seen := make(map[string]bool, len(rooms))
	out := make([]domain.ExtractedRoom, 0, len(rooms))
	for _, r := range rooms {
		key := r.DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Summarize counts rooms per level and per room type. Levels are bucketed the
// way DedupKey compares them and reported under the first spelling seen.
func Summarize(rooms []domain.ExtractedRoom) (byLevel map[string]int, byType map[domain.RoomType]int) {
	byLevel = make(map[string]int)
	byType = make(map[domain.RoomType]int)
	spelling := make(map[string]string)
	for _, r := range rooms {
		level := strings.TrimSpace(r.Level)
		if level == "" {
			level = domain.DefaultLevel
		}
		key := strings.ToLower(level)
		if first, ok := spelling[key]; ok {
			level = first
		} else {
			spelling[key] = level
		}
		byLevel[level]++
		byType[r.RoomType]++
	}
	return byLevel, byType
}
