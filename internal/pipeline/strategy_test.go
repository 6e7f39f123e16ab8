package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/planscan/internal/domain"
)

type recordingStrategy struct {
	name  string
	ext   *domain.RoomExtraction
	err   error
	order *[]string
}

func (s recordingStrategy) Name() string { return s.name }

func (s recordingStrategy) Extract(context.Context, *Input) (*domain.RoomExtraction, error) {
	*s.order = append(*s.order, s.name)
	return s.ext, s.err
}

func TestChainStopsAtFirstNonEmptyResult(t *testing.T) {
	var order []string
	chain := Chain{
		recordingStrategy{name: "a", err: errors.New("boom"), order: &order},
		recordingStrategy{name: "b", err: ErrNotApplicable, order: &order},
		recordingStrategy{name: "c", ext: &domain.RoomExtraction{}, order: &order},
		recordingStrategy{name: "d", ext: rooms("", "Kitchen"), order: &order},
		recordingStrategy{name: "e", ext: rooms("", "Den"), order: &order},
	}

	res, err := chain.Run(context.Background(), &Input{}, "plans.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
	assert.Equal(t, "d", res.Strategy)
	assert.Equal(t, []string{"a", "c", "d"}, res.Attempts)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "a failed: boom")
	assert.Contains(t, res.Warnings[1], "c found no rooms")
	for _, w := range res.Warnings {
		assert.NotContains(t, w, "no rooms could be extracted")
	}
}

func TestChainExhaustion(t *testing.T) {
	var order []string
	chain := Chain{
		recordingStrategy{name: "a", err: errors.New("boom"), order: &order},
		recordingStrategy{name: "b", ext: nil, order: &order},
	}

	res, err := chain.Run(context.Background(), &Input{}, "plans.pdf")
	require.NoError(t, err)
	assert.Nil(t, res.Extraction)
	assert.Empty(t, res.Strategy)
	last := res.Warnings[len(res.Warnings)-1]
	assert.Contains(t, last, "no rooms could be extracted (tried: a, b)")
}

func TestChainKeepsNotesOfEmptyAttempts(t *testing.T) {
	var order []string
	chain := Chain{
		recordingStrategy{name: "a", ext: &domain.RoomExtraction{
			MissingInfo: []string{"No scale bar"},
			Assumptions: []string{"Single family"},
		}, order: &order},
		recordingStrategy{name: "b", ext: rooms("", "Kitchen"), order: &order},
	}

	res, err := chain.Run(context.Background(), &Input{}, "plans.pdf")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Strategy)
	assert.Equal(t, []string{"No scale bar"}, res.MissingInfo)
	assert.Equal(t, []string{"Single family"}, res.Assumptions)
}

func TestChainHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	chain := Chain{
		NewStrategy("cancel", func(context.Context, *Input) (*domain.RoomExtraction, error) {
			order = append(order, "cancel")
			cancel()
			return nil, context.Canceled
		}),
		recordingStrategy{name: "never", ext: rooms("", "Kitchen"), order: &order},
	}

	_, err := chain.Run(ctx, &Input{}, "plans.pdf")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"cancel"}, order)
}

func TestScaffolderFallsBackToPlaceholders(t *testing.T) {
	backend := &fakeBackend{scaffold: func([]domain.ExtractedRoom) ([]domain.LineItemScaffold, error) {
		return nil, errors.New("bad gateway")
	}}
	in := []domain.ExtractedRoom{{Name: "Kitchen"}, {Name: "Bath"}}

	items, warnings, err := NewScaffolder(backend).Scaffold(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{ScaffoldFallbackWarning}, warnings)
	for i, item := range items {
		assert.Equal(t, in[i].Name, item.RoomName)
		assert.Equal(t, domain.ScopeReviewDescription, item.Description)
		assert.Equal(t, 1.0, item.Quantity)
		assert.Equal(t, "ls", item.Unit)
	}
}

func TestScaffoldedItemsCarryNoPricing(t *testing.T) {
	backend := &fakeBackend{scaffold: func(rooms []domain.ExtractedRoom) ([]domain.LineItemScaffold, error) {
		var items []domain.LineItemScaffold
		raw := `[{"description":"Paint","room_name":"Kitchen","quantity":200,"unit":"sf","direct_cost":900,"client_price":1400,"margin":0.35}]`
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
		return items, nil
	}}

	items, warnings, err := NewScaffolder(backend).Scaffold(context.Background(), []domain.ExtractedRoom{{Name: "Kitchen"}})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	out, err := json.Marshal(items)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(out), `"direct_cost":null`))
	assert.True(t, strings.Contains(string(out), `"client_price":null`))
	assert.True(t, strings.Contains(string(out), `"margin":null`))
}
