package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"shiftwatch/internal/normalize"
)

func ParseJSONBytes(data []byte) (*normalize.EventFields, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return ParseJSONMap(obj), nil
}

func ParseJSONMap(obj map[string]interface{}) *normalize.EventFields {
	fields := &normalize.EventFields{Extras: lowerKeys(obj)}
	fields.Name = firstNonEmpty(fields.Extras, nameKeys...)
	fields.Timestamp = firstNonEmpty(fields.Extras, timestampKeys...)
	return fields
}

func ParseStatusJSONBytes(data []byte) (*normalize.StatusFields, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return ParseStatusJSONMap(obj), nil
}

func ParseStatusJSONMap(obj map[string]interface{}) *normalize.StatusFields {
	kv := lowerKeys(obj)
	return &normalize.StatusFields{
		Name:  firstNonEmpty(kv, nameKeys...),
		Date:  firstNonEmpty(kv, dateKeys...),
		Label: firstNonEmpty(kv, labelKeys...),
	}
}

func lowerKeys(obj map[string]interface{}) map[string]string {
	out := make(map[string]string, len(obj))
	for key, val := range obj {
		if val == nil {
			continue
		}
		out[strings.ToLower(key)] = jsonString(val)
	}
	return out
}

// jsonString keeps integral numbers such as unix timestamps out of
// exponent notation.
func jsonString(val interface{}) string {
	if f, ok := val.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(val)
}
