package types

import (
	"encoding/json"
	"testing"
)

// TestFlexInt64 accepts both JSON numbers and digit strings.
func TestFlexInt64(t *testing.T) {
	var wrapper struct {
		ID *FlexInt64 `json:"id"`
	}

	if err := json.Unmarshal([]byte(`{"id": 42}`), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal number: %v", err)
	}
	if wrapper.ID == nil || wrapper.ID.Int64() != 42 {
		t.Errorf("Expected 42, got %v", wrapper.ID)
	}

	wrapper.ID = nil
	if err := json.Unmarshal([]byte(`{"id": "17"}`), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal string: %v", err)
	}
	if wrapper.ID == nil || wrapper.ID.Int64() != 17 {
		t.Errorf("Expected 17, got %v", wrapper.ID)
	}

	// Absent field stays nil so handlers can tell "missing" apart
	// from zero
	wrapper.ID = nil
	if err := json.Unmarshal([]byte(`{}`), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal empty object: %v", err)
	}
	if wrapper.ID != nil {
		t.Errorf("Expected nil for absent field, got %v", wrapper.ID)
	}

	if err := json.Unmarshal([]byte(`{"id": "nope"}`), &wrapper); err == nil {
		t.Error("Expected an error for a non-numeric string")
	}
	if err := json.Unmarshal([]byte(`{"id": [1]}`), &wrapper); err == nil {
		t.Error("Expected an error for an array value")
	}
}

type flexRow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// TestFlexRows accepts plain arrays and string-embedded arrays.
func TestFlexRows(t *testing.T) {
	var wrapper struct {
		Rows *FlexRows[flexRow] `json:"rows"`
	}

	if err := json.Unmarshal([]byte(`{"rows": [{"id": 1, "name": "a", "value": 10}]}`), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal array: %v", err)
	}
	rows := wrapper.Rows.Slice()
	if len(rows) != 1 || rows[0].Name != "a" {
		t.Errorf("Expected one row named a, got %v", rows)
	}

	wrapper.Rows = nil
	embedded := `{"rows": "[{\"id\": 2, \"name\": \"b\", \"value\": 20}]"}`
	if err := json.Unmarshal([]byte(embedded), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal embedded array: %v", err)
	}
	rows = wrapper.Rows.Slice()
	if len(rows) != 1 || rows[0].ID != 2 || rows[0].Value != 20 {
		t.Errorf("Expected embedded row, got %v", rows)
	}

	// Distinguishes absent, null and empty: only the empty array
	// produces a non-nil field
	wrapper.Rows = nil
	if err := json.Unmarshal([]byte(`{}`), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal empty object: %v", err)
	}
	if wrapper.Rows != nil {
		t.Errorf("Expected nil for absent field, got %v", wrapper.Rows)
	}

	wrapper.Rows = nil
	if err := json.Unmarshal([]byte(`{"rows": "[]"}`), &wrapper); err != nil {
		t.Fatalf("Failed to unmarshal empty embedded array: %v", err)
	}
	if wrapper.Rows == nil || len(wrapper.Rows.Slice()) != 0 {
		t.Errorf("Expected present empty slice, got %v", wrapper.Rows)
	}

	var direct FlexRows[flexRow]
	if err := json.Unmarshal([]byte(`"not an array"`), &direct); err == nil {
		t.Error("Expected an error for a string not holding an array")
	}
}

// TestFlexString unwraps doubly-encoded strings.
func TestFlexString(t *testing.T) {
	var v FlexString
	if err := json.Unmarshal([]byte(`"8.0"`), &v); err != nil {
		t.Fatalf("Failed to unmarshal plain string: %v", err)
	}
	if v.String() != "8.0" {
		t.Errorf("Expected 8.0, got %q", v)
	}

	v = ""
	if err := json.Unmarshal([]byte(`"\"9.4-dev\""`), &v); err != nil {
		t.Fatalf("Failed to unmarshal double-encoded string: %v", err)
	}
	if v.String() != "9.4-dev" {
		t.Errorf("Expected 9.4-dev, got %q", v)
	}

	// A leading quote without valid inner encoding stays as-is
	v = ""
	if err := json.Unmarshal([]byte(`"\"unterminated"`), &v); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if v.String() != `"unterminated` {
		t.Errorf("Expected literal value, got %q", v)
	}
}
