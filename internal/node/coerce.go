package node

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbgen-run/dbgen/internal/entity"
)

// coerce validates and normalizes v against t, the declared column type of
// the field it is headed into (§4.2 Load algorithm, step 1).
func coerce(v interface{}, t entity.ColumnType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case entity.ColumnText:
		switch x := v.(type) {
		case string:
			return x, nil
		default:
			return fmt.Sprintf("%v", x), nil
		}
	case entity.ColumnInt:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		default:
			return nil, fmt.Errorf("%w: %v is not an int", ErrTypeMismatch, v)
		}
	case entity.ColumnFloat:
		switch x := v.(type) {
		case float32:
			return float64(x), nil
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		default:
			return nil, fmt.Errorf("%w: %v is not a float", ErrTypeMismatch, v)
		}
	case entity.ColumnBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %v is not a bool", ErrTypeMismatch, v)
		}
		return b, nil
	case entity.ColumnTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, fmt.Errorf("%w: %v is not an RFC3339 timestamp", ErrTypeMismatch, v)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("%w: %v is not a timestamp", ErrTypeMismatch, v)
		}
	case entity.ColumnUUID:
		switch x := v.(type) {
		case string:
			if _, err := uuid.Parse(x); err != nil {
				return nil, fmt.Errorf("%w: %v is not a uuid", ErrTypeMismatch, v)
			}
			return x, nil
		case uuid.UUID:
			return x.String(), nil
		default:
			return nil, fmt.Errorf("%w: %v is not a uuid", ErrTypeMismatch, v)
		}
	case entity.ColumnJSON:
		return v, nil
	default:
		return v, nil
	}
}
