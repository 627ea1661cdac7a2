package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONConditions stores smart-rule conditions as a JSON column.
type JSONConditions []Condition

// Condition mirrors the domain rule condition for persistence.
type Condition struct {
	Attribute string   `json:"attribute"`
	Operator  string   `json:"operator"`
	Values    []string `json:"values"`
}

// Scan implements sql.Scanner interface
func (j *JSONConditions) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONConditions value: %v", value)
	}
	result := make([]Condition, 0)
	err := json.Unmarshal(bytes, &result)
	*j = JSONConditions(result)
	return err
}

// Value implements driver.Valuer interface
func (j JSONConditions) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONInt64Array stores matched rule ids as a JSON column.
type JSONInt64Array []int64

// Scan implements sql.Scanner interface
func (j *JSONInt64Array) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONInt64Array value: %v", value)
	}
	result := make([]int64, 0)
	err := json.Unmarshal(bytes, &result)
	*j = JSONInt64Array(result)
	return err
}

// Value implements driver.Valuer interface
func (j JSONInt64Array) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONStringArray is a custom type for JSON string arrays
type JSONStringArray []string

// Scan implements sql.Scanner interface
func (j *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONStringArray value: %v", value)
	}
	result := make([]string, 0)
	err := json.Unmarshal(bytes, &result)
	*j = JSONStringArray(result)
	return err
}

// Value implements driver.Valuer interface
func (j JSONStringArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}
