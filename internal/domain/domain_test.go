package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSheetType(t *testing.T) {
	assert.Equal(t, SheetTypeFloorPlan, ParseSheetType("Floor Plan"))
	assert.Equal(t, SheetTypeFloorPlan, ParseSheetType("floor_plan"))
	assert.Equal(t, SheetTypeSchedule, ParseSheetType("SCHEDULE"))
	assert.Equal(t, SheetTypeElevation, ParseSheetType("elevations"))
	assert.Equal(t, SheetTypeOther, ParseSheetType("landscape"))
	assert.Equal(t, SheetTypeOther, ParseSheetType(""))
}

func TestParseRoomType(t *testing.T) {
	cases := map[string]RoomType{
		"Master Bedroom": RoomTypeBedroom,
		"Master Bath":    RoomTypeBathroom,
		"Powder Room":    RoomTypeBathroom,
		"Walk-in Closet": RoomTypeCloset,
		"Great Room":     RoomTypeLiving,
		"Hallway":        RoomTypeHallway,
		"2-Car Garage":   RoomTypeGarage,
		"Mechanical":     RoomTypeUtility,
		"Patio":          RoomTypeOther,
	}
	for name, want := range cases {
		assert.Equal(t, want, ParseRoomType("", name), name)
	}
	assert.Equal(t, RoomTypeKitchen, ParseRoomType("kitchen", "Room 101"))
	assert.Equal(t, RoomTypeOffice, ParseRoomType("Study", "Room 102"))
}

func TestExtractedRoomNormalize(t *testing.T) {
	l, w := 12.0, 10.0
	r := ExtractedRoom{Name: "  Bedroom 2 ", LengthFt: &l, WidthFt: &w, Confidence: 140}
	r.Normalize()

	assert.Equal(t, "Bedroom 2", r.Name)
	assert.Equal(t, RoomTypeBedroom, r.RoomType)
	assert.Equal(t, 100, r.Confidence)
	require.NotNil(t, r.AreaSqFt)
	assert.InDelta(t, 120.0, *r.AreaSqFt, 0.001)

	area := 99.0
	r2 := ExtractedRoom{Name: "Den", AreaSqFt: &area, LengthFt: &l, WidthFt: &w, Confidence: -3}
	r2.Normalize()
	assert.InDelta(t, 99.0, *r2.AreaSqFt, 0.001)
	assert.Equal(t, 0, r2.Confidence)
}

func TestDedupKey(t *testing.T) {
	a := ExtractedRoom{Name: " Kitchen "}
	b := ExtractedRoom{Name: "kitchen", Level: "level 1"}
	c := ExtractedRoom{Name: "Kitchen", Level: "Level 2"}

	assert.Equal(t, "level 1::kitchen", a.DedupKey())
	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())
}

func TestLineItemScaffoldNeverCarriesPricing(t *testing.T) {
	var li LineItemScaffold
	err := json.Unmarshal([]byte(`{"description":"Paint walls","category":"finishes","room_name":"Kitchen","quantity":2,"unit":"sf","direct_cost":120.5,"client_price":200,"margin":0.3}`), &li)
	require.NoError(t, err)
	assert.Equal(t, "Paint walls", li.Description)

	out, err := json.Marshal(li)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &m))
	for _, k := range []string{"direct_cost", "client_price", "margin"} {
		v, ok := m[k]
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, JobStatusUploaded.CanTransition(JobStatusProcessing))
	assert.True(t, JobStatusProcessing.CanTransition(JobStatusParsed))
	assert.True(t, JobStatusProcessing.CanTransition(JobStatusFailed))
	assert.False(t, JobStatusParsed.CanTransition(JobStatusProcessing))
	assert.False(t, JobStatusUploaded.CanTransition(JobStatusParsed))
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
}

func TestParseResultColumnRoundTrip(t *testing.T) {
	in := EmptyResult()
	v, err := in.Value()
	require.NoError(t, err)

	var out ParseResult
	require.NoError(t, out.Scan(v))
	require.Len(t, out.Rooms, 1)
	assert.Equal(t, SentinelRoomName, out.Rooms[0].Name)
}
