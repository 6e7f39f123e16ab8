package pipeline

import (
	"context"

	"github.com/timmy/planscan/internal/domain"
	"github.com/timmy/planscan/internal/logger"
)

// ScaffoldFallbackWarning is recorded when placeholder line items replace backend output.
const ScaffoldFallbackWarning = "Line items could not be drafted automatically; a scope review placeholder was added for each room."

// Scaffolder drafts unpriced line items for the deduplicated rooms.
type Scaffolder struct {
	backend Backend
}

// NewScaffolder creates a Scaffolder.
func NewScaffolder(backend Backend) *Scaffolder {
	return &Scaffolder{backend: backend}
}

// Scaffold returns line items for rooms. When the backend fails or returns
// nothing, one scope review item per room is produced instead.
func (s *Scaffolder) Scaffold(ctx context.Context, rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, []string, error) {
	if len(rooms) == 0 {
		return []domain.LineItemScaffold{}, nil, nil
	}
	items, err := s.backend.ScaffoldLineItems(ctx, rooms)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}
	if err == nil && len(items) > 0 {
		return items, nil, nil
	}
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Line-item scaffolding failed, using placeholders")
	}
	return PlaceholderItems(rooms), []string{ScaffoldFallbackWarning}, nil
}

// PlaceholderItems returns one scope review item per room.
func PlaceholderItems(rooms []domain.ExtractedRoom) []domain.LineItemScaffold {
	items := make([]domain.LineItemScaffold, len(rooms))
	for i, r := range rooms {
		items[i] = domain.ScopeReviewItem(r)
	}
	return items
}
