package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// FieldType is the declared value type of a definition field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeInteger FieldType = "integer"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeList    FieldType = "list"
)

func ValidFieldType(t FieldType) bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeInteger, FieldTypeBoolean, FieldTypeDate, FieldTypeList:
		return true
	default:
		return false
	}
}

// FieldDecl declares one typed field of a metadata definition. Submitted
// content may carry keys beyond the declared set; those pass through as-is.
type FieldDecl struct {
	Field string    `json:"field"`
	Type  FieldType `json:"type"`
}

// ValidateFieldDecls checks a declaration list at registration time.
func ValidateFieldDecls(decls []FieldDecl) error {
	seen := make(map[string]struct{}, len(decls))
	for i, d := range decls {
		name := strings.TrimSpace(d.Field)
		if name == "" {
			return fmt.Errorf("field declaration %d has an empty name", i)
		}
		if !ValidFieldType(d.Type) {
			return fmt.Errorf("field %q declares unknown type %q", name, d.Type)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field %q declared more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func EncodeFieldDecls(decls []FieldDecl) (datatypes.JSON, error) {
	if decls == nil {
		decls = []FieldDecl{}
	}
	raw, err := json.Marshal(decls)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeFieldDecls(raw datatypes.JSON) ([]FieldDecl, error) {
	if len(raw) == 0 {
		return []FieldDecl{}, nil
	}
	var decls []FieldDecl
	if err := json.Unmarshal(raw, &decls); err != nil {
		return nil, err
	}
	if decls == nil {
		decls = []FieldDecl{}
	}
	return decls, nil
}

// CoerceFieldValue converts a submitted value to its declared type. A nil
// value is returned unchanged so an explicit null is distinguishable from an
// omitted key. Strings are never implicitly stringified from other types.
func CoerceFieldValue(t FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case FieldTypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case FieldTypeNumber:
		return coerceNumber(v)
	case FieldTypeInteger:
		return coerceInteger(v)
	case FieldTypeBoolean:
		return coerceBoolean(v)
	case FieldTypeDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected RFC 3339 date string, got %T", v)
		}
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid RFC 3339 date %q", s)
		}
		return parsed.UTC().Format(time.RFC3339), nil
	case FieldTypeList:
		if list, ok := v.([]any); ok {
			return list, nil
		}
		return nil, fmt.Errorf("expected array, got %T", v)
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", n.String())
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func coerceInteger(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if math.Trunc(n) != n {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case float32:
		return coerceInteger(float64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", n.String())
		}
		return coerceInteger(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func coerceBoolean(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		default:
			return false, fmt.Errorf("cannot parse %q as boolean", b)
		}
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}
