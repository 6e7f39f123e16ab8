package service

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const classificationSchema = `{
  "type": "object",
  "required": ["pages"],
  "properties": {
    "pages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["page_number", "type"],
        "properties": {
          "page_number": {"type": "integer", "minimum": 1},
          "type": {"type": "string"},
          "confidence": {"type": ["number", "null"]},
          "has_room_labels": {"type": ["boolean", "null"]},
          "reason": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

const roomsSchema = `{
  "type": "object",
  "required": ["rooms"],
  "properties": {
    "rooms": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": ["string", "null"]},
          "level": {"type": ["string", "null"]},
          "room_type": {"type": ["string", "null"]},
          "area_sqft": {"type": ["number", "null"]},
          "length_ft": {"type": ["number", "null"]},
          "width_ft": {"type": ["number", "null"]},
          "ceiling_height_ft": {"type": ["number", "null"]},
          "dimensions": {"type": ["string", "null"]},
          "notes": {"type": ["string", "null"]},
          "confidence": {"type": ["number", "null"]}
        }
      }
    },
    "assumptions": {"type": ["array", "null"], "items": {"type": "string"}},
    "warnings": {"type": ["array", "null"], "items": {"type": "string"}},
    "missing_info": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

const lineItemsSchema = `{
  "type": "object",
  "required": ["line_items"],
  "properties": {
    "line_items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "description": {"type": "string", "minLength": 1},
          "category": {"type": ["string", "null"]},
          "cost_code": {"type": ["string", "null"]},
          "room_name": {"type": ["string", "null"]},
          "quantity": {"type": ["number", "null"]},
          "unit": {"type": ["string", "null"]},
          "notes": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

// responseSchemas holds the compiled validators for backend responses.
type responseSchemas struct {
	classification *jsonschema.Schema
	rooms          *jsonschema.Schema
	lineItems      *jsonschema.Schema
}

func compileSchemas() (*responseSchemas, error) {
	compile := func(name, src string) (*jsonschema.Schema, error) {
		s, err := jsonschema.CompileString(name, src)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		return s, nil
	}

	var (
		out responseSchemas
		err error
	)
	if out.classification, err = compile("classification.json", classificationSchema); err != nil {
		return nil, err
	}
	if out.rooms, err = compile("rooms.json", roomsSchema); err != nil {
		return nil, err
	}
	if out.lineItems, err = compile("line_items.json", lineItemsSchema); err != nil {
		return nil, err
	}
	return &out, nil
}
