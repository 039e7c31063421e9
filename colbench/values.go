package colbench

import (
	"fmt"
	"math"
)

// Coerce converts a decoded value to the Go type of t.
//
// Readers whose libraries widen values (for example to int64 or float64, or
// lists to []any) use Coerce to restore the declared type. Integer values are
// converted with Go conversion semantics, keeping the low bits.
func Coerce(t Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if !t.List {
		return coerceScalar(t.Kind, v)
	}
	switch list := v.(type) {
	case []any:
		out := newList(t.Kind, len(list))
		for i, e := range list {
			c, err := coerceScalar(t.Kind, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			setListElem(out, i, c)
		}
		return out, nil
	default:
		if isList(t.Kind, v) {
			return v, nil
		}
		return nil, fmt.Errorf("cannot coerce %T to %s", v, t)
	}
}

// Zero returns the zero value of t; nil lists are returned as empty slices.
func Zero(t Type) any {
	switch {
	case t.List:
		return newList(t.Kind, 0)
	case t.Kind == KindBool:
		return false
	case t.Kind == KindString:
		return ""
	}
	v, _ := coerceScalar(t.Kind, int64(0))
	return v
}

// ListLen returns the length of a list value, or 0 for nil.
func ListLen(v any) int {
	switch s := v.(type) {
	case nil:
		return 0
	case []bool:
		return len(s)
	case []int8:
		return len(s)
	case []int16:
		return len(s)
	case []int32:
		return len(s)
	case []int64:
		return len(s)
	case []uint8:
		return len(s)
	case []uint16:
		return len(s)
	case []uint32:
		return len(s)
	case []uint64:
		return len(s)
	case []float32:
		return len(s)
	case []float64:
		return len(s)
	case []string:
		return len(s)
	case []any:
		return len(s)
	default:
		return 0
	}
}

// ListElems returns the elements of a list value as a []any.
func ListElems(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	case []bool:
		return elems(s)
	case []int8:
		return elems(s)
	case []int16:
		return elems(s)
	case []int32:
		return elems(s)
	case []int64:
		return elems(s)
	case []uint8:
		return elems(s)
	case []uint16:
		return elems(s)
	case []uint32:
		return elems(s)
	case []uint64:
		return elems(s)
	case []float32:
		return elems(s)
	case []float64:
		return elems(s)
	case []string:
		return elems(s)
	default:
		return nil
	}
}

func elems[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func coerceScalar(k Kind, v any) (any, error) {
	switch k {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot coerce %T to bool", v)
		}
		return b, nil
	case KindString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		default:
			return nil, fmt.Errorf("cannot coerce %T to string", v)
		}
	case KindFloat32, KindFloat64:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("cannot coerce %T to %s", v, k)
		}
		if k == KindFloat32 {
			return float32(f), nil
		}
		return f, nil
	}

	i, ok := toInt(v)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %T to %s", v, k)
	}
	switch k {
	case KindInt8:
		return int8(i), nil
	case KindInt16:
		return int16(i), nil
	case KindInt32:
		return int32(i), nil
	case KindInt64:
		return i, nil
	case KindUint8:
		return uint8(i), nil
	case KindUint16:
		return uint16(i), nil
	case KindUint32:
		return uint32(i), nil
	case KindUint64:
		return uint64(i), nil
	default:
		return nil, fmt.Errorf("invalid kind %s", k)
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if math.Trunc(n) != n {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		i, ok := toInt(v)
		return float64(i), ok
	}
}

func newList(k Kind, n int) any {
	switch k {
	case KindBool:
		return make([]bool, n)
	case KindInt8:
		return make([]int8, n)
	case KindInt16:
		return make([]int16, n)
	case KindInt32:
		return make([]int32, n)
	case KindInt64:
		return make([]int64, n)
	case KindUint8:
		return make([]uint8, n)
	case KindUint16:
		return make([]uint16, n)
	case KindUint32:
		return make([]uint32, n)
	case KindUint64:
		return make([]uint64, n)
	case KindFloat32:
		return make([]float32, n)
	case KindFloat64:
		return make([]float64, n)
	default:
		return make([]string, n)
	}
}

func setListElem(list any, i int, v any) {
	switch s := list.(type) {
	case []bool:
		s[i] = v.(bool)
	case []int8:
		s[i] = v.(int8)
	case []int16:
		s[i] = v.(int16)
	case []int32:
		s[i] = v.(int32)
	case []int64:
		s[i] = v.(int64)
	case []uint8:
		s[i] = v.(uint8)
	case []uint16:
		s[i] = v.(uint16)
	case []uint32:
		s[i] = v.(uint32)
	case []uint64:
		s[i] = v.(uint64)
	case []float32:
		s[i] = v.(float32)
	case []float64:
		s[i] = v.(float64)
	case []string:
		s[i] = v.(string)
	}
}

func isList(k Kind, v any) bool {
	switch v.(type) {
	case []bool:
		return k == KindBool
	case []int8:
		return k == KindInt8
	case []int16:
		return k == KindInt16
	case []int32:
		return k == KindInt32
	case []int64:
		return k == KindInt64
	case []uint8:
		return k == KindUint8
	case []uint16:
		return k == KindUint16
	case []uint32:
		return k == KindUint32
	case []uint64:
		return k == KindUint64
	case []float32:
		return k == KindFloat32
	case []float64:
		return k == KindFloat64
	case []string:
		return k == KindString
	default:
		return false
	}
}
