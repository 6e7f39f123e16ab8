package domain

import (
	"strings"
)

// RoomType is the closed room-type vocabulary.
type RoomType string

const (
	RoomTypeBedroom  RoomType = "bedroom"
	RoomTypeBathroom RoomType = "bathroom"
	RoomTypeKitchen  RoomType = "kitchen"
	RoomTypeLiving   RoomType = "living"
	RoomTypeDining   RoomType = "dining"
	RoomTypeLaundry  RoomType = "laundry"
	RoomTypeCloset   RoomType = "closet"
	RoomTypeHallway  RoomType = "hallway"
	RoomTypeGarage   RoomType = "garage"
	RoomTypeOffice   RoomType = "office"
	RoomTypeUtility  RoomType = "utility"
	RoomTypeOther    RoomType = "other"
)

// DefaultLevel is assumed for rooms without a detected level.
const DefaultLevel = "Level 1"

// Sentinel room synthesized when nothing was extracted.
const (
	SentinelRoomName = "General / Scope Notes"
	SentinelRoomNote = "No rooms were detected in the uploaded documents; use this entry for general scope."
)

// ordered so that the more specific keyword wins ("master bath" is a bathroom, not a bedroom)
var roomTypeKeywords = []struct {
	keyword string
	t       RoomType
}{
	{"bath", RoomTypeBathroom},
	{"powder", RoomTypeBathroom},
	{"toilet", RoomTypeBathroom},
	{"restroom", RoomTypeBathroom},
	{"shower", RoomTypeBathroom},
	{"wc", RoomTypeBathroom},
	{"closet", RoomTypeCloset},
	{"wic", RoomTypeCloset},
	{"pantry", RoomTypeCloset},
	{"storage", RoomTypeCloset},
	{"kitchen", RoomTypeKitchen},
	{"kitchenette", RoomTypeKitchen},
	{"bed", RoomTypeBedroom},
	{"nursery", RoomTypeBedroom},
	{"guest", RoomTypeBedroom},
	{"laundry", RoomTypeLaundry},
	{"mud", RoomTypeLaundry},
	{"dining", RoomTypeDining},
	{"breakfast", RoomTypeDining},
	{"living", RoomTypeLiving},
	{"family", RoomTypeLiving},
	{"great room", RoomTypeLiving},
	{"den", RoomTypeLiving},
	{"lounge", RoomTypeLiving},
	{"hall", RoomTypeHallway},
	{"corridor", RoomTypeHallway},
	{"foyer", RoomTypeHallway},
	{"entry", RoomTypeHallway},
	{"stair", RoomTypeHallway},
	{"garage", RoomTypeGarage},
	{"carport", RoomTypeGarage},
	{"office", RoomTypeOffice},
	{"study", RoomTypeOffice},
	{"library", RoomTypeOffice},
	{"mechanical", RoomTypeUtility},
	{"utility", RoomTypeUtility},
	{"furnace", RoomTypeUtility},
	{"electrical", RoomTypeUtility},
}

// ParseRoomType coerces a label (or, failing that, the room name) into the closed vocabulary.
func ParseRoomType(label, name string) RoomType {
	for _, candidate := range []string{label, name} {
		c := strings.ToLower(strings.TrimSpace(candidate))
		if c == "" {
			continue
		}
		switch RoomType(c) {
		case RoomTypeBedroom, RoomTypeBathroom, RoomTypeKitchen, RoomTypeLiving, RoomTypeDining,
			RoomTypeLaundry, RoomTypeCloset, RoomTypeHallway, RoomTypeGarage, RoomTypeOffice, RoomTypeUtility:
			return RoomType(c)
		}
		words := " " + strings.NewReplacer("_", " ", "-", " ", "/", " ").Replace(c) + " "
		for _, kw := range roomTypeKeywords {
			if kw.keyword == "wc" || kw.keyword == "wic" || kw.keyword == "den" {
				if strings.Contains(words, " "+kw.keyword+" ") {
					return kw.t
				}
				continue
			}
			if strings.Contains(words, kw.keyword) {
				return kw.t
			}
		}
	}
	return RoomTypeOther
}

// ExtractedRoom is one room found on a sheet or image.
type ExtractedRoom struct {
	Name            string   `json:"name"`
	Level           string   `json:"level,omitempty"`
	RoomType        RoomType `json:"room_type"`
	AreaSqFt        *float64 `json:"area_sqft"`
	LengthFt        *float64 `json:"length_ft"`
	WidthFt         *float64 `json:"width_ft"`
	CeilingHeightFt *float64 `json:"ceiling_height_ft"`
	Dimensions      string   `json:"dimensions,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	Confidence      int      `json:"confidence"`
	// SourcePage is the page the room was read from (0 for direct images).
	SourcePage int `json:"source_page,omitempty"`
	// Source is the file reference the room came from.
	Source string `json:"source,omitempty"`
}

// Normalize applies the room invariants: confidence in [0,100], a closed room
// type, and area derived from length x width when the backend gave no area.
func (r *ExtractedRoom) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Level = strings.TrimSpace(r.Level)
	r.Confidence = ClampConfidence(r.Confidence)
	r.RoomType = ParseRoomType(string(r.RoomType), r.Name)
	if r.AreaSqFt == nil && r.LengthFt != nil && r.WidthFt != nil && *r.LengthFt > 0 && *r.WidthFt > 0 {
		area := *r.LengthFt * *r.WidthFt
		r.AreaSqFt = &area
	}
}

// DedupKey is lowercase(level or "Level 1") + "::" + lowercase(trim(name)).
func (r ExtractedRoom) DedupKey() string {
	level := strings.TrimSpace(r.Level)
	if level == "" {
		level = DefaultLevel
	}
	return strings.ToLower(level) + "::" + strings.ToLower(strings.TrimSpace(r.Name))
}

// SentinelRoom returns the placeholder room used when extraction found nothing.
func SentinelRoom() ExtractedRoom {
	return ExtractedRoom{
		Name:     SentinelRoomName,
		Level:    DefaultLevel,
		RoomType: RoomTypeOther,
		Notes:    SentinelRoomNote,
	}
}

// RoomExtraction is what one extraction call yields.
type RoomExtraction struct {
	Rooms       []ExtractedRoom `json:"rooms"`
	Assumptions []string        `json:"assumptions,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	MissingInfo []string        `json:"missing_info,omitempty"`
}

// Empty reports whether the extraction produced no rooms.
func (e *RoomExtraction) Empty() bool {
	return e == nil || len(e.Rooms) == 0
}
