// Package dict provides typed access to the free-form key/value maps that
// describe a layer in configuration — a URI's query parameters, a TOML
// table, or anything else shaped like map[string]interface{}.
package dict

import "fmt"

// ErrKeyRequired is returned when a key has no default and is missing
// from the map.
type ErrKeyRequired struct {
	Key string
}

func (e ErrKeyRequired) Error() string {
	return fmt.Sprintf("dict: key %q is required", e.Key)
}

// ErrKeyType is returned when a key is present but not the expected type.
type ErrKeyType struct {
	Key   string
	Value interface{}
	T     string
}

func (e ErrKeyType) Error() string {
	return fmt.Sprintf("dict: key %q has value %v (%T); want %s", e.Key, e.Value, e.Value, e.T)
}

// Dicter is the read interface a layer's configuration map must satisfy.
// A key absent from the map falls back to def when def != nil, and errors
// with ErrKeyRequired otherwise.
type Dicter interface {
	String(key string, def *string) (string, error)
	StringSlice(key string) ([]string, error)
	Int(key string, def *int) (int, error)
	Uint(key string, def *uint) (uint, error)
	Float(key string, def *float64) (float64, error)
	Bool(key string, def *bool) (bool, error)
	Map(key string) (Dict, error)
	MapSlice(key string) ([]Dict, error)
}

// Dict is the map-backed Dicter a provider's TOML parameters table is
// normalized into before reaching a provider. Layer URIs are not parsed
// into a Dict; package uri handles them.
type Dict map[string]interface{}

func (d Dict) lookup(key string) (interface{}, bool) {
	v, ok := d[key]
	return v, ok
}

func (d Dict) String(key string, def *string) (string, error) {
	v, ok := d.lookup(key)
	if !ok {
		if def != nil {
			return *def, nil
		}
		return "", ErrKeyRequired{Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrKeyType{Key: key, Value: v, T: "string"}
	}
	return s, nil
}

func (d Dict) StringSlice(key string) ([]string, error) {
	v, ok := d.lookup(key)
	if !ok {
		return nil, ErrKeyRequired{Key: key}
	}
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []interface{}:
		out := make([]string, len(vv))
		for i, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, ErrKeyType{Key: key, Value: e, T: "string"}
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, ErrKeyType{Key: key, Value: v, T: "[]string"}
	}
}

func (d Dict) Int(key string, def *int) (int, error) {
	v, ok := d.lookup(key)
	if !ok {
		if def != nil {
			return *def, nil
		}
		return 0, ErrKeyRequired{Key: key}
	}
	switch vv := v.(type) {
	case int:
		return vv, nil
	case int64:
		return int(vv), nil
	case float64:
		return int(vv), nil
	default:
		return 0, ErrKeyType{Key: key, Value: v, T: "int"}
	}
}

func (d Dict) Uint(key string, def *uint) (uint, error) {
	v, ok := d.lookup(key)
	if !ok {
		if def != nil {
			return *def, nil
		}
		return 0, ErrKeyRequired{Key: key}
	}
	switch vv := v.(type) {
	case uint:
		return vv, nil
	case int:
		if vv < 0 {
			return 0, ErrKeyType{Key: key, Value: v, T: "uint"}
		}
		return uint(vv), nil
	case float64:
		if vv < 0 {
			return 0, ErrKeyType{Key: key, Value: v, T: "uint"}
		}
		return uint(vv), nil
	default:
		return 0, ErrKeyType{Key: key, Value: v, T: "uint"}
	}
}

func (d Dict) Float(key string, def *float64) (float64, error) {
	v, ok := d.lookup(key)
	if !ok {
		if def != nil {
			return *def, nil
		}
		return 0, ErrKeyRequired{Key: key}
	}
	switch vv := v.(type) {
	case float64:
		return vv, nil
	case int:
		return float64(vv), nil
	default:
		return 0, ErrKeyType{Key: key, Value: v, T: "float64"}
	}
}

func (d Dict) Bool(key string, def *bool) (bool, error) {
	v, ok := d.lookup(key)
	if !ok {
		if def != nil {
			return *def, nil
		}
		return false, ErrKeyRequired{Key: key}
	}
	b, ok := v.(bool)
	if !ok {
		return false, ErrKeyType{Key: key, Value: v, T: "bool"}
	}
	return b, nil
}

func (d Dict) Map(key string) (Dict, error) {
	v, ok := d.lookup(key)
	if !ok {
		return nil, ErrKeyRequired{Key: key}
	}
	switch vv := v.(type) {
	case Dict:
		return vv, nil
	case map[string]interface{}:
		return Dict(vv), nil
	default:
		return nil, ErrKeyType{Key: key, Value: v, T: "map"}
	}
}

func (d Dict) MapSlice(key string) ([]Dict, error) {
	v, ok := d.lookup(key)
	if !ok {
		return nil, ErrKeyRequired{Key: key}
	}
	vv, ok := v.([]interface{})
	if !ok {
		return nil, ErrKeyType{Key: key, Value: v, T: "[]map"}
	}
	out := make([]Dict, len(vv))
	for i, e := range vv {
		switch m := e.(type) {
		case Dict:
			out[i] = m
		case map[string]interface{}:
			out[i] = Dict(m)
		default:
			return nil, ErrKeyType{Key: key, Value: e, T: "map"}
		}
	}
	return out, nil
}
