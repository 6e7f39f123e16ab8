package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray is a string slice stored as a JSON text column.
type StringArray []string

// Value implements the driver.Valuer interface.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	raw, err := columnBytes(value)
	if err != nil {
		return errors.New("failed to scan StringArray")
	}
	return json.Unmarshal(raw, a)
}

// Value implements the driver.Valuer interface so the payload is stored as JSON text.
func (r *ParseResult) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (r *ParseResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	raw, err := columnBytes(value)
	if err != nil {
		return errors.New("failed to scan ParseResult")
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, r)
}

func columnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unexpected column type")
	}
}
