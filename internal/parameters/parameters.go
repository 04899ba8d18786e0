// Package parameters handles agent configuration Params: a map[string]string parsed from
// configuration strings like "tabular:epsilon=0.1,qtable=redis://localhost:6379/0".
package parameters

import (
	"slices"
	"strconv"
	"strings"

	"github.com/janpfeifer/gomokuGo/internal/generics"
	"github.com/pkg/errors"
)

// Params represent generic configuration parameters.
type Params map[string]string

// Value types supported by GetParamOr and PopParamOr.
type Value interface {
	bool | int | float32 | float64 | string
}

// NewFromConfigString create params from a comma-separated list of "key=value" or "key" entries.
// Spaces around keys and values are trimmed, and empty entries are ignored.
// Only the first "=" separates the key, so values may contain "=" (but not ",").
func NewFromConfigString(config string) Params {
	params := make(Params)
	for _, part := range strings.Split(config, ",") {
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}
	return params
}

// String returns the params in configuration string format, sorted by key.
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for key, value := range generics.SortedKeysAndValues(p) {
		if value == "" {
			parts = append(parts, key)
		} else {
			parts = append(parts, key+"="+value)
		}
	}
	return strings.Join(parts, ",")
}

// Keys returns the sorted keys of the params.
func (p Params) Keys() []string {
	return slices.Collect(generics.SortedKeys(p))
}

// PopParamOr is like GetParamOr, but it also deletes from the params map the retrieved parameter.
func PopParamOr[T Value](params Params, key string, defaultValue T) (T, error) {
	value, err := GetParamOr(params, key, defaultValue)
	if err != nil {
		return value, err
	}
	delete(params, key)
	return value, nil
}

// GetParamOr attempts to parse a parameter to the given type if the key is present, or returns the defaultValue
// if not.
//
// For bool types, a key without a value is interpreted as true. For numeric types an empty value
// returns the defaultValue.
func GetParamOr[T Value](params Params, key string, defaultValue T) (T, error) {
	value, exists := params[key]
	if !exists {
		return defaultValue, nil
	}
	var parsed any
	var err error
	switch any(defaultValue).(type) {
	case string:
		parsed = value
	case int:
		if value == "" {
			return defaultValue, nil
		}
		parsed, err = strconv.Atoi(value)
	case float32:
		if value == "" {
			return defaultValue, nil
		}
		var f float64
		f, err = strconv.ParseFloat(value, 32)
		parsed = float32(f)
	case float64:
		if value == "" {
			return defaultValue, nil
		}
		parsed, err = strconv.ParseFloat(value, 64)
	case bool:
		switch strings.ToLower(value) {
		case "", "true", "1":
			parsed = true
		case "false", "0":
			parsed = false
		default:
			err = errors.New("invalid bool")
		}
	}
	if err != nil {
		return defaultValue, errors.Wrapf(err, "failed to parse configuration %s=%q as %T", key, value, defaultValue)
	}
	return parsed.(T), nil
}
