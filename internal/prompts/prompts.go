package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Shared vocabularies
// ============================================================================

// SheetTypes is the closed set of page classifications the backend may return.
var SheetTypes = []string{"floor_plan", "schedule", "notes", "elevation", "cover", "other"}

// RoomTypes is the closed room-type vocabulary.
var RoomTypes = []string{
	"bedroom", "bathroom", "kitchen", "living", "dining", "laundry",
	"closet", "hallway", "garage", "office", "utility", "other",
}

// ============================================================================
// Page classification
// ============================================================================

// ClassifySystemPrompt defines the role and output contract for page classification.
var ClassifySystemPrompt = `You review pages of residential and light-commercial construction drawings.
For every page you are given, decide what kind of sheet it is.

Allowed types: ` + strings.Join(SheetTypes, ", ") + `.
- floor_plan: a plan view showing walls and rooms of one level
- schedule: door, window, finish or fixture tables
- notes: general notes, specifications, code notes
- elevation: exterior or interior elevations and sections
- cover: title sheet, sheet index, project information
- other: anything else (site plans, structural, MEP, details)

Respond with JSON only, no prose, in exactly this shape:
{"pages":[{"page_number":1,"type":"floor_plan","confidence":85,"has_room_labels":true,"reason":"short reason"}]}
confidence is an integer from 0 to 100. has_room_labels is true when the page names rooms (KITCHEN, BEDROOM 2, ...).`

// ClassifyUserPrompt renders the pages to classify.
func ClassifyUserPrompt(pages []PageText) string {
	var b strings.Builder
	b.WriteString("Classify the following pages.\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "\n=== PAGE %d ===\n%s\n", p.PageNumber, p.Text)
	}
	return b.String()
}

// PageText is a page number and its (possibly truncated) text.
type PageText struct {
	PageNumber int
	Text       string
}

// ============================================================================
// Room extraction
// ============================================================================

const roomShape = `{"rooms":[{"name":"Kitchen","level":"Level 1","room_type":"kitchen","area_sqft":180,"length_ft":15,"width_ft":12,"ceiling_height_ft":9,"dimensions":"15'-0\" x 12'-0\"","notes":"","confidence":80}],
"assumptions":["..."],"warnings":["..."],"missing_info":["..."]}`

// RoomSystemPrompt defines the role and output contract for room extraction.
var RoomSystemPrompt = `You extract the rooms shown on architectural floor plans for a construction estimate.

Rules:
- List every labeled room or space once. Do not invent rooms that are not labeled.
- room_type must be one of: ` + strings.Join(RoomTypes, ", ") + `.
- Convert dimensions to decimal feet. Use null for anything not shown; never guess areas.
- level is the floor the room is on ("Level 1", "Level 2", "Basement") when it can be told.
- confidence is an integer from 0 to 100.
- Put estimator-relevant caveats in assumptions, problems reading the sheet in warnings,
  and information an estimator would still need in missing_info.

Respond with JSON only, no prose, in exactly this shape:
` + roomShape

// RoomTextUserPrompt renders the text of one sheet for extraction.
func RoomTextUserPrompt(title, level string, pageNumber int, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet: page %d", pageNumber)
	if title != "" {
		fmt.Fprintf(&b, ", title %q", title)
	}
	if level != "" {
		fmt.Fprintf(&b, ", level %q", level)
	}
	b.WriteString("\nExtracted text of the sheet follows. Room labels and dimension strings may be scattered.\n\n")
	b.WriteString(text)
	return b.String()
}

// RoomVisionUserPrompt introduces the images submitted for vision extraction.
func RoomVisionUserPrompt(pageNumbers []int) string {
	if len(pageNumbers) == 0 {
		return "Extract the rooms shown on this drawing."
	}
	parts := make([]string, len(pageNumbers))
	for i, n := range pageNumbers {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("The images are pages %s of a drawing set, in order. Extract the rooms shown.", strings.Join(parts, ", "))
}

// ============================================================================
// Line-item scaffolding
// ============================================================================

// LineItemSystemPrompt defines the role and output contract for line-item scaffolding.
const LineItemSystemPrompt = `You draft the scope of work for a renovation or construction estimate.
For each room, propose the line items an estimator would review: demolition, framing,
drywall, flooring, paint, trim, plumbing and electrical fixtures, as relevant to the room type.

Do not price anything. Never include costs, prices, rates or margins.
quantity is a number in the given unit (sf, lf, ea, ls). Use the room area for
floor and ceiling quantities when it is known, otherwise quantity 1 with unit "ls".

Respond with JSON only, no prose, in exactly this shape:
{"line_items":[{"description":"Install LVP flooring","category":"flooring","cost_code":"09-6500","room_name":"Kitchen","quantity":180,"unit":"sf","notes":""}]}`

// LineItemUserPrompt renders the room list for scaffolding.
func LineItemUserPrompt(rooms []RoomSummary) string {
	var b strings.Builder
	b.WriteString("Rooms:\n")
	for _, r := range rooms {
		fmt.Fprintf(&b, "- %s (%s, %s)", r.Name, r.Type, r.Level)
		if r.AreaSqFt > 0 {
			fmt.Fprintf(&b, ", %.0f sf", r.AreaSqFt)
		}
		if r.Notes != "" {
			fmt.Fprintf(&b, ", notes: %s", r.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RoomSummary is the room description sent for scaffolding.
type RoomSummary struct {
	Name     string
	Type     string
	Level    string
	AreaSqFt float64
	Notes    string
}
