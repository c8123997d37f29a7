// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Option carries provider specific tunables as a loose key/value map,
// keys namespaced like "listen.language" or "listen.model".
type Option map[string]interface{}

// GetString returns the value for key as a string.
func (o Option) GetString(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", fmt.Errorf("option %q not found", key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// GetBool returns the value for key as a bool. String values are parsed
// with strconv.ParseBool.
func (o Option) GetBool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, fmt.Errorf("option %q not found", key)
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	default:
		return false, fmt.Errorf("option %q is not a bool", key)
	}
}

// GetInt returns the value for key as an int.
func (o Option) GetInt(key string) (int, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not found", key)
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("option %q is not an int", key)
	}
}

// GetFloat returns the value for key as a float64.
func (o Option) GetFloat(key string) (float64, error) {
	v, ok := o[key]
	if !ok {
		return 0, fmt.Errorf("option %q not found", key)
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("option %q is not a float", key)
	}
}

// GetStringSlice returns the value for key as a slice of strings. A plain
// string value of the form "[a b c]" is split on whitespace.
func (o Option) GetStringSlice(key string) ([]string, error) {
	v, ok := o[key]
	if !ok {
		return nil, fmt.Errorf("option %q not found", key)
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out, nil
	case string:
		trimmed := strings.Trim(t, "[]")
		return strings.Fields(trimmed), nil
	default:
		return nil, fmt.Errorf("option %q is not a string slice", key)
	}
}
