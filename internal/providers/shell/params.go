package shell

import (
	"fmt"
	"math"
	"time"

	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
)

// Parameters arrive decoded from JSON, so numbers are float64.

func getString(params map[string]interface{}, key string, required bool) (string, error) {
	val, ok := params[key]
	if !ok || val == nil {
		if required {
			return "", fmt.Errorf("%s parameter required: %w", key, errs.ErrInvalidArgument)
		}
		return "", nil
	}

	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s must be string: %w", key, errs.ErrInvalidArgument)
	}
	if required && str == "" {
		return "", fmt.Errorf("%s cannot be empty: %w", key, errs.ErrInvalidArgument)
	}
	return str, nil
}

// getInt returns def when key is absent.
func getInt(params map[string]interface{}, key string, def int) (int, error) {
	val, ok := params[key]
	if !ok || val == nil {
		return def, nil
	}

	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s must be number: %w", key, errs.ErrInvalidArgument)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s must be an integer: %w", key, errs.ErrInvalidArgument)
	}
	return int(f), nil
}

// getSeconds reads a duration given in seconds. Zero or absent means "use
// the default", reported as 0.
func getSeconds(params map[string]interface{}, key string) (time.Duration, error) {
	val, ok := params[key]
	if !ok || val == nil {
		return 0, nil
	}

	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, fmt.Errorf("%s must be number of seconds: %w", key, errs.ErrInvalidArgument)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must not be negative: %w", key, errs.ErrInvalidArgument)
	}
	// Anything past the governor ceiling is clamped later.
	if f > float64(math.MaxInt32) {
		f = math.MaxInt32
	}
	return time.Duration(f * float64(time.Second)), nil
}

// getEnv reads an object of string values.
func getEnv(params map[string]interface{}, key string) (map[string]string, error) {
	val, ok := params[key]
	if !ok || val == nil {
		return nil, nil
	}

	raw, ok := val.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s must be object: %w", key, errs.ErrInvalidArgument)
	}
	env := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s.%s must be string: %w", key, k, errs.ErrInvalidArgument)
		}
		env[k] = s
	}
	return env, nil
}
