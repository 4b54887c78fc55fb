package core

import (
	"fmt"
	"iter"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Params is an unordered parameter map. It is accepted wherever call data is
// expected and converted to Values with keys in lexical order.
type Params map[string]any

// Values is an ordered mapping from parameter name to scalar value.
// Iteration and serialization follow insertion order. The zero value is
// ready to use.
type Values struct {
	keys []string
	vals map[string]any
}

// NewValues creates Values from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewValues(pairs ...any) *Values {
	v := &Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			key = fmt.Sprint(pairs[i])
		}
		v.Set(key, pairs[i+1])
	}
	return v
}

// Set stores value under key. An existing key keeps its position.
// A nil value marks the key as absent.
func (v *Values) Set(key string, value any) *Values {
	if v.vals == nil {
		v.vals = make(map[string]any)
	}
	if _, ok := v.vals[key]; !ok {
		v.keys = append(v.keys, key)
	}
	v.vals[key] = value
	return v
}

// Get returns the value stored under key.
func (v *Values) Get(key string) (any, bool) {
	if v == nil || v.vals == nil {
		return nil, false
	}
	val, ok := v.vals[key]
	return val, ok
}

// Has reports whether key is present with a non-nil value.
func (v *Values) Has(key string) bool {
	val, ok := v.Get(key)
	return ok && val != nil
}

// Del removes key.
func (v *Values) Del(key string) *Values {
	if v == nil || v.vals == nil {
		return v
	}
	if _, ok := v.vals[key]; !ok {
		return v
	}
	delete(v.vals, key)
	v.keys = slices.DeleteFunc(v.keys, func(k string) bool { return k == key })
	return v
}

// Len returns the number of keys, including those holding nil.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.keys)
}

// Keys returns the keys in insertion order.
func (v *Values) Keys() []string {
	if v == nil {
		return nil
	}
	return slices.Clone(v.keys)
}

// All iterates over key/value pairs in insertion order.
func (v *Values) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if v == nil {
			return
		}
		for _, k := range v.keys {
			if !yield(k, v.vals[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (v *Values) Clone() *Values {
	out := &Values{}
	if v == nil {
		return out
	}
	out.keys = slices.Clone(v.keys)
	out.vals = maps.Clone(v.vals)
	return out
}

// Validate returns an InvalidArgument error for the first value that is not a
// supported scalar.
func (v *Values) Validate() error {
	for k, val := range v.All() {
		if val == nil {
			continue
		}
		if _, ok := FormatValue(val); !ok {
			return NewValidationError(ErrCodeInvalidArgument, k,
				"%s should be a string, number or boolean, got %T", k, val)
		}
	}
	return nil
}

// Encode serializes non-nil values as k1=v1&k2=v2 in insertion order,
// skipping the keys listed in omit. Unsupported values are skipped.
func (v *Values) Encode(omit ...string) string {
	var sb strings.Builder
	for k, val := range v.All() {
		if val == nil || slices.Contains(omit, k) {
			continue
		}
		s, ok := FormatValue(val)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(s))
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (v *Values) String() string {
	return v.Encode()
}

// FormatValue renders a scalar parameter value the way it goes on the wire.
func FormatValue(val any) (string, bool) {
	switch x := val.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case *apd.Decimal:
		if x == nil {
			return "", false
		}
		return x.Text('f'), true
	case apd.Decimal:
		return x.Text('f'), true
	case time.Time:
		return strconv.FormatInt(x.UnixMilli(), 10), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return "", false
	}
}

// ToValues converts object-like call data to Values. It reports false for
// nil and for anything that is not a parameter container.
func ToValues(data any) (*Values, bool) {
	switch d := data.(type) {
	case *Values:
		if d == nil {
			return nil, false
		}
		return d.Clone(), true
	case Values:
		return d.Clone(), true
	case Params:
		return fromMap(d), true
	case map[string]any:
		return fromMap(d), true
	case map[string]string:
		out := &Values{}
		for _, k := range slices.Sorted(maps.Keys(d)) {
			out.Set(k, d[k])
		}
		return out, true
	default:
		return nil, false
	}
}

func fromMap(m map[string]any) *Values {
	out := &Values{}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		out.Set(k, m[k])
	}
	return out
}
