package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSON column helpers. Nil maps round-trip as NULL.

func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(data), nil
}

func unmarshalMap(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshal json column: %w", err)
	}
	return m, nil
}

func unmarshalStringSlice(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, fmt.Errorf("unmarshal json column: %w", err)
	}
	return out, nil
}

func unmarshalFloatMap(s sql.NullString) (map[string]float64, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshal json column: %w", err)
	}
	return m, nil
}

// Decimal serialization. Theta and standard error persist at scale 4, raw
// scores at scale 2; values are computed as float64 and narrowed only at
// this boundary.

func decimal4(v *float64) any {
	if v == nil {
		return nil
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func decimal2(v *float64) any {
	if v == nil {
		return nil
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullBoolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
