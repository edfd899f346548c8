package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*OrganizationSettings)(nil)
	_ driver.Valuer = OrganizationSettings{}
	_ sql.Scanner   = (*UserPreferences)(nil)
	_ driver.Valuer = UserPreferences{}
	_ sql.Scanner   = (*AuditMetadata)(nil)
	_ driver.Valuer = AuditMetadata(nil)
)

// scanJSONB is a generic helper that scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// valueJSONB is a generic helper that converts a Go value to a JSONB-compatible driver.Value.
func valueJSONB(v interface{}) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (s *OrganizationSettings) Scan(value interface{}) error {
	return scanJSONB(s, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (s OrganizationSettings) Value() (driver.Value, error) {
	return valueJSONB(s)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (p *UserPreferences) Scan(value interface{}) error {
	return scanJSONB(p, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (p UserPreferences) Value() (driver.Value, error) {
	return valueJSONB(p)
}

// Scan implements the sql.Scanner interface. A NULL column scans to an empty map.
func (m *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = AuditMetadata{}
		return nil
	}
	return scanJSONB(m, value)
}

// Value writes the metadata as JSONB; nil metadata is stored as an empty object.
func (m AuditMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(map[string]any(m))
}
