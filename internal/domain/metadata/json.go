package metadata

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// EncodeJSONMap marshals a map into a jsonb column value. Nil encodes as an
// empty object so jsonb NOT NULL columns stay well-formed.
func EncodeJSONMap(m map[string]any) (datatypes.JSON, error) {
	if m == nil {
		m = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeJSONMap(raw datatypes.JSON) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
