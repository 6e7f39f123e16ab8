package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/planscan/internal/domain"
)

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

type levelPattern struct {
	re      *regexp.Regexp
	resolve func(m []string) string
}

func numbered(group int) func([]string) string {
	return func(m []string) string {
		n, err := strconv.Atoi(m[group])
		if err != nil || n <= 0 {
			return ""
		}
		return fmt.Sprintf("Level %d", n)
	}
}

func worded(group int) func([]string) string {
	return func(m []string) string {
		if n, ok := ordinalWords[strings.ToLower(m[group])]; ok {
			return fmt.Sprintf("Level %d", n)
		}
		return ""
	}
}

func fixed(level string) func([]string) string {
	return func([]string) string { return level }
}

const storey = `(?:floor|story|storey|level)`

var levelPatterns = []levelPattern{
	{regexp.MustCompile(`(?i)\b(?:basement|cellar)\b`), fixed("Basement")},
	{regexp.MustCompile(`(?i)\blower\s+level\b`), fixed("Lower Level")},
	{regexp.MustCompile(`(?i)\bmezzanine\b`), fixed("Mezzanine")},
	{regexp.MustCompile(`(?i)\battic\b`), fixed("Attic")},
	{regexp.MustCompile(`(?i)\broof\s+(?:plan|level|deck)\b`), fixed("Roof")},
	{regexp.MustCompile(`(?i)\b(?:ground|main)\s+` + storey + `\b`), fixed(domain.DefaultLevel)},
	{regexp.MustCompile(`(?i)\b(?:level|lvl)\.?\s*[-#]?\s*(\d{1,2})\b`), numbered(1)},
	{regexp.MustCompile(`(?i)\blevel\s+(one|two|three|four|five|six|seven|eight|nine|ten)\b`), worded(1)},
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\s+` + storey + `\b`), numbered(1)},
	{regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\s+` + storey + `\b`), worded(1)},
	{regexp.MustCompile(`(?i)\bfloor\s+(\d{1,2})\b`), numbered(1)},
	{regexp.MustCompile(`\bL-?(\d{1,2})\b`), numbered(1)},
}

// DetectLevel returns the canonical level named in text, or "" when none is found.
// When several levels are named the earliest mention wins.
func DetectLevel(text string) string {
	best, bestAt := "", -1
	for _, p := range levelPatterns {
		loc := p.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if bestAt != -1 && loc[0] >= bestAt {
			continue
		}
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		if level := p.resolve(m); level != "" {
			best, bestAt = level, loc[0]
		}
	}
	return best
}

var (
	titleKeywords = regexp.MustCompile(`(?i)\b(?:plan|plans|schedule|schedules|elevation|elevations|section|sections|notes|cover\s+sheet|title\s+sheet|sheet\s+index)\b`)
	sheetNumber   = regexp.MustCompile(`\b([A-Z]{1,2})-?(\d{1,3}(?:\.\d{1,2})?)\b`)
	spaces        = regexp.MustCompile(`\s+`)
)

const maxTitleLen = 80

// ExtractSheetTitle picks a title for a page: a short line naming a plan,
// schedule, elevation, notes or cover sheet, else a sheet number, else the
// first short non-empty line.
func ExtractSheetTitle(text string) string {
	lines := strings.Split(text, "\n")
	clean := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(spaces.ReplaceAllString(l, " "))
		if l != "" {
			clean = append(clean, l)
		}
	}

	for _, l := range clean {
		if len(l) <= maxTitleLen && titleKeywords.MatchString(l) {
			return l
		}
	}
	for _, l := range clean {
		if len(l) > 24 {
			continue
		}
		if m := sheetNumber.FindStringSubmatch(l); m != nil {
			return fmt.Sprintf("Sheet %s-%s", m[1], m[2])
		}
	}
	for _, l := range clean {
		if len(l) <= 60 {
			return l
		}
	}
	return ""
}

// Enrich adds level and title metadata to classifications. The classification
// type and confidence are never changed.
func Enrich(classes []domain.PageClassification, pages func(int) string) []domain.PageClassification {
	out := make([]domain.PageClassification, len(classes))
	for i, c := range classes {
		text := pages(c.PageNumber)
		if c.SheetTitle == "" {
			c.SheetTitle = ExtractSheetTitle(text)
		}
		if c.Level == "" {
			c.Level = DetectLevel(c.SheetTitle)
		}
		if c.Level == "" {
			c.Level = DetectLevel(text)
		}
		out[i] = c
	}
	return out
}
