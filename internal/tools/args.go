package tools

import (
	"fmt"
	"math"
)

// Argument extraction helpers. JSON decoding hands every number over as
// float64, so integer arguments tolerate whole-valued floats.

func argString(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing required argument %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	if required && s == "" {
		return "", fmt.Errorf("argument %q must not be empty", key)
	}
	return s, nil
}

func argInt(args map[string]any, key string, required bool, fallback int) (int, error) {
	v, ok := args[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required argument %q", key)
		}
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("argument %q must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
}

func argFloat(args map[string]any, key string, required bool, fallback float64) (float64, error) {
	v, ok := args[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required argument %q", key)
		}
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func argBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean", key)
	}
	return b, nil
}

func argStringSlice(args map[string]any, key string, required bool) ([]string, error) {
	v, ok := args[key]
	if !ok {
		if required {
			return nil, fmt.Errorf("missing required argument %q", key)
		}
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must be a list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument %q must be a list of strings", key)
	}
}

// checkTileIndex validates an image id against the number of tiles produced
// for the current screenshot.
func checkTileIndex(id, numTiles int) error {
	if id < 0 {
		return fmt.Errorf("argument \"image_id\" must be a non-negative integer")
	}
	if id >= numTiles {
		return fmt.Errorf("Image ID exceeds the number of cropped screenshots (%d >= %d)", id, numTiles)
	}
	return nil
}
