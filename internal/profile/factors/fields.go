package factors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"linkage/internal/match"
)

// Field coercion for the loosely typed records transports hand us. JSON
// bodies arrive as string/float64/json.Number; native callers may pass Go
// numerics, time.Time, or decimal.Decimal directly. A missing or uncoercible
// field is a factor error, which drops the candidate with metadata rather
// than guessing a score.

func fieldDecimal(e match.Entity, field string) (decimal.Decimal, error) {
	v, ok := e.Field(field)
	if !ok {
		return decimal.Zero, fmt.Errorf("record %s: field %q missing", e.ID(), field)
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero, fmt.Errorf("record %s: field %q is not numeric: %v", e.ID(), field, err)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("record %s: field %q is not numeric: %v", e.ID(), field, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	default:
		return decimal.Zero, fmt.Errorf("record %s: field %q has unsupported type %T", e.ID(), field, v)
	}
}

func fieldFloat(e match.Entity, field string) (float64, error) {
	v, ok := e.Field(field)
	if !ok {
		return 0, fmt.Errorf("record %s: field %q missing", e.ID(), field)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("record %s: field %q is not numeric: %v", e.ID(), field, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("record %s: field %q is not numeric: %v", e.ID(), field, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("record %s: field %q has unsupported type %T", e.ID(), field, v)
	}
}

// dateLayouts are tried in order for string date fields.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func fieldTime(e match.Entity, field string) (time.Time, error) {
	v, ok := e.Field(field)
	if !ok {
		return time.Time{}, fmt.Errorf("record %s: field %q missing", e.ID(), field)
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		raw := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("record %s: field %q is not a date: %q", e.ID(), field, t)
	default:
		return time.Time{}, fmt.Errorf("record %s: field %q has unsupported type %T", e.ID(), field, v)
	}
}

func fieldString(e match.Entity, field string) (string, error) {
	v, ok := e.Field(field)
	if !ok {
		return "", fmt.Errorf("record %s: field %q missing", e.ID(), field)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	case json.Number:
		return t.String(), nil
	case float64, float32, int, int64, bool:
		return fmt.Sprintf("%v", t), nil
	default:
		return "", fmt.Errorf("record %s: field %q has unsupported type %T", e.ID(), field, v)
	}
}
