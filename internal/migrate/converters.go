package migrate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/cognitedata/cdf-tk/internal/cdf"
)

const (
	int32Min = math.MinInt32
	int32Max = math.MaxInt32

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	dateLayout      = "2006-01-02"
)

// ConvertToPrimaryProperty converts a raw JSON value into the declared data
// model primitive type. Reference types (direct, timeseries, file, sequence)
// are deliberately unsupported: they require relationship resolution this
// pipeline does not perform.
func ConvertToPrimaryProperty(value any, spec *cdf.PropertyTypeSpec, nullable bool) (any, error) {
	if value == nil {
		if nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("null value for non-nullable property")
	}
	if spec == nil {
		return nil, fmt.Errorf("property has no declared type")
	}
	if spec.List {
		return nil, fmt.Errorf("list properties are not supported")
	}
	if _, isList := value.([]any); isList {
		return nil, fmt.Errorf("list values are not supported")
	}

	switch spec.Type {
	case "text":
		return convertText(value)
	case "boolean":
		return convertBoolean(value)
	case "int32":
		n, err := integerValue(value)
		if err != nil {
			return nil, err
		}
		if n < int32Min || n > int32Max {
			return nil, fmt.Errorf("value %d is out of range for int32", n)
		}
		return n, nil
	case "int64":
		return integerValue(value)
	case "float32":
		return convertFloat32(value)
	case "float64":
		return convertFloat64(value)
	case "json":
		return convertJSON(value)
	case "timestamp":
		t, err := timeValue(value)
		if err != nil {
			return nil, err
		}
		return t.UTC().Format(timestampLayout), nil
	case "date":
		t, err := timeValue(value)
		if err != nil {
			return nil, err
		}
		return t.UTC().Format(dateLayout), nil
	case "enum":
		return convertEnum(value, spec.Values)
	case "direct", "timeseries", "file", "sequence":
		return nil, fmt.Errorf("converting to %s references is not supported", spec.Type)
	default:
		return nil, fmt.Errorf("unknown property type %q", spec.Type)
	}
}

func convertText(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case map[string]any:
		return nil, fmt.Errorf("cannot convert object to text")
	default:
		return cast.ToStringE(v)
	}
}

func convertBoolean(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch {
		case strings.EqualFold(v, "true") || v == "1":
			return true, nil
		case strings.EqualFold(v, "false") || v == "0":
			return false, nil
		}
		return nil, fmt.Errorf("cannot convert %q to boolean", v)
	default:
		if f, ok := numericValue(value); ok {
			return f != 0, nil
		}
		return nil, fmt.Errorf("cannot convert %T to boolean", value)
	}
}

func convertFloat32(value any) (any, error) {
	f, err := floatValue(value)
	if err != nil {
		return nil, err
	}
	narrowed := float32(f)
	if math.IsInf(float64(narrowed), 0) {
		// Catches both genuine infinities and overflow introduced by narrowing.
		return nil, fmt.Errorf("value %g overflows float32", f)
	}
	return float64(narrowed), nil
}

func convertFloat64(value any) (any, error) {
	f, err := floatValue(value)
	if err != nil {
		return nil, err
	}
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("infinite values are not valid float64 properties")
	}
	return f, nil
}

func convertJSON(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case bool, json.Number, float64, int, int64:
		return v, nil
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return nil, fmt.Errorf("string is not valid JSON: %w", err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to json", value)
	}
}

func convertEnum(value any, legal map[string]cdf.EnumValue) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("enum values must be strings, got %T", value)
	}
	for identifier := range legal {
		if strings.EqualFold(identifier, s) {
			return identifier, nil
		}
	}
	identifiers := make([]string, 0, len(legal))
	for identifier := range legal {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)
	return nil, fmt.Errorf("%q is not a legal enum value, expected one of %v", s, identifiers)
}

// numericValue extracts a float64 from any numeric JSON representation.
func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// integerValue extracts an int64, rejecting fractional values.
func integerValue(value any) (int64, error) {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", v.String())
		}
		return n, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if math.Trunc(v) != v || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("value %g is not an integer", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", value)
	}
}

func floatValue(value any) (float64, error) {
	if f, ok := numericValue(value); ok {
		return f, nil
	}
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to number", value)
}

// timeValue interprets epoch milliseconds or a lenient set of string layouts.
func timeValue(value any) (time.Time, error) {
	if f, ok := numericValue(value); ok {
		return time.UnixMilli(int64(f)), nil
	}
	if s, ok := value.(string); ok {
		t, err := cast.StringToDateInDefaultLocation(s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("value %q is not a valid timestamp", s)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to timestamp", value)
}
