package domain

import "encoding/json"

// LineItemScaffold is an unpriced placeholder line item awaiting review.
//
// The type has no pricing fields. Serialized forms always carry direct_cost,
// client_price and margin as null so consumers see the policy explicitly.
type LineItemScaffold struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	CostCode    string  `json:"cost_code,omitempty"`
	RoomName    string  `json:"room_name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	Notes       string  `json:"notes,omitempty"`
}

// Fallback scaffold values used when the backend produced no line items.
const (
	ScopeReviewDescription = "Scope review"
	ScopeReviewCategory    = "general"
	ScopeReviewUnit        = "ls"
)

type lineItemWire struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	CostCode    string   `json:"cost_code,omitempty"`
	RoomName    string   `json:"room_name"`
	Quantity    float64  `json:"quantity"`
	Unit        string   `json:"unit"`
	Notes       string   `json:"notes,omitempty"`
	DirectCost  *float64 `json:"direct_cost"`
	ClientPrice *float64 `json:"client_price"`
	Margin      *float64 `json:"margin"`
}

// MarshalJSON emits the scaffold with explicit null pricing fields.
func (li LineItemScaffold) MarshalJSON() ([]byte, error) {
	return json.Marshal(lineItemWire{
		Description: li.Description,
		Category:    li.Category,
		CostCode:    li.CostCode,
		RoomName:    li.RoomName,
		Quantity:    li.Quantity,
		Unit:        li.Unit,
		Notes:       li.Notes,
	})
}

// UnmarshalJSON reads a scaffold and discards any pricing values present in the input.
func (li *LineItemScaffold) UnmarshalJSON(data []byte) error {
	var w lineItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*li = LineItemScaffold{
		Description: w.Description,
		Category:    w.Category,
		CostCode:    w.CostCode,
		RoomName:    w.RoomName,
		Quantity:    w.Quantity,
		Unit:        w.Unit,
		Notes:       w.Notes,
	}
	return nil
}

// ScopeReviewItem returns the deterministic placeholder line item for a room.
func ScopeReviewItem(room ExtractedRoom) LineItemScaffold {
	return LineItemScaffold{
		Description: ScopeReviewDescription,
		Category:    ScopeReviewCategory,
		RoomName:    room.Name,
		Quantity:    1,
		Unit:        ScopeReviewUnit,
		Notes:       "Placeholder generated without backend assistance; review scope for this room.",
	}
}
