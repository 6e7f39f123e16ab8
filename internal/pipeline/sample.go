package pipeline

import "github.com/timmy/planscan/internal/domain"

// SamplePages returns pages unchanged when there are at most threshold of
// them, otherwise an evenly spread subset of at most limit pages that always
// includes the first and last page.
func SamplePages(pages []domain.ExtractedPage, threshold, limit int) []domain.ExtractedPage {
	n := len(pages)
	if n <= threshold || limit <= 0 || n <= limit {
		return pages
	}
	if limit == 1 {
		return pages[:1]
	}

	out := make([]domain.ExtractedPage, 0, limit)
	last := -1
	for i := 0; i < limit; i++ {
		// rounded position of the i-th of limit evenly spaced points over [0, n-1]
		idx := (i*(n-1)*2 + (limit - 1)) / (2 * (limit - 1))
		if idx <= last {
			idx = last + 1
		}
		if idx >= n {
			break
		}
		out = append(out, pages[idx])
		last = idx
	}
	return out
}
