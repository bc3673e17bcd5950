package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/lib/pq"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
// Returns JSON as string for compatibility with simple protocol mode
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// StatusArray is a TEXT[] of allocation statuses, used with = ANY($n)
type StatusArray []AllocationStatus

// Value implements the driver.Valuer interface
func (a StatusArray) Value() (driver.Value, error) {
	s := make([]string, len(a))
	for i, v := range a {
		s[i] = string(v)
	}
	return pq.Array(s).Value()
}
