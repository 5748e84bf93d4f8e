package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// stringArg returns args[key] when it is a string, otherwise "".
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads an integer argument. JSON numbers, Go integers and numeric
// strings are accepted; a missing or non-numeric value yields def.
func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return saturate(float64(n))
	case float64:
		return saturate(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return saturate(float64(i))
		}
		if f, err := n.Float64(); err == nil {
			return saturate(f)
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return saturate(f)
		}
	}
	return def
}

// saturate truncates f toward zero and pins it to the int range.
func saturate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}
