package runtime

import (
	"fmt"
	"html"
	"reflect"
	"strconv"
)

// Absence is represented as nil. Every helper in this file accepts nil and
// degrades instead of panicking, which keeps template execution error free
// no matter what the data looks like.

// Truthy reports whether a value counts as true in a conditional: absence,
// false, zero numbers, empty strings, and empty collections are false,
// everything else is true.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String:
		return rv.Len() != 0
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() != 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Truthy(rv.Elem().Interface())
	case reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// Str renders a value for text output. Absence renders as the empty string;
// floats drop their trailing zeros so a calculation result reads naturally.
func Str(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return Str(rv.Elem().Interface())
	}
	return fmt.Sprintf("%v", v)
}

// Escape renders a value and escapes it for markup output.
func Escape(v any) string {
	return html.EscapeString(Str(v))
}

// toNumber coerces a value to a number. Numeric strings coerce too, since
// template data is frequently stringly typed (form input, query params).
func toNumber(v any) (f float64, isInt bool, ok bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true, true
	case int64:
		return float64(t), true, true
	case float64:
		return t, false, true
	case float32:
		return float64(t), false, true
	case string:
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return float64(i), true, true
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, false, true
		}
		return 0, false, false
	case bool:
		if t {
			return 1, true, true
		}
		return 0, true, true
	case nil:
		return 0, false, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true, true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), false, true
	}
	return 0, false, false
}

// Equal compares loosely: numbers (including numeric strings) compare by
// value, absence equals only absence, everything else compares by string
// form.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, _, aok := toNumber(a)
	bf, _, bok := toNumber(b)
	if aok && bok {
		return af == bf
	}
	return Str(a) == Str(b)
}

// Less orders two values: numerically when both are numeric, lexically when
// both are strings. Incomparable pairs and absence order as false.
func Less(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	af, _, aok := toNumber(a)
	bf, _, bok := toNumber(b)
	if aok && bok {
		return af < bf
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as < bs
	}
	return false
}

// Add sums two numbers, or concatenates when either side is not numeric.
// Absence propagates.
func Add(a, b any) any {
	if a == nil || b == nil {
		return nil
	}
	af, aInt, aok := toNumber(a)
	bf, bInt, bok := toNumber(b)
	if aok && bok {
		if aInt && bInt {
			return int64(af) + int64(bf)
		}
		return af + bf
	}
	return Str(a) + Str(b)
}

func Sub(a, b any) any { return arith(a, b, func(x, y float64) float64 { return x - y }) }
func Mul(a, b any) any { return arith(a, b, func(x, y float64) float64 { return x * y }) }

// Div divides; division by zero yields absence. Integer division that comes
// out even stays an integer.
func Div(a, b any) any {
	af, aInt, aok := toNumber(a)
	bf, bInt, bok := toNumber(b)
	if !aok || !bok || bf == 0 {
		return nil
	}
	if aInt && bInt && int64(af)%int64(bf) == 0 {
		return int64(af) / int64(bf)
	}
	return af / bf
}

// Mod is the integer remainder; a zero divisor yields absence.
func Mod(a, b any) any {
	af, _, aok := toNumber(a)
	bf, _, bok := toNumber(b)
	if !aok || !bok || int64(bf) == 0 {
		return nil
	}
	return int64(af) % int64(bf)
}

func arith(a, b any, op func(x, y float64) float64) any {
	af, aInt, aok := toNumber(a)
	bf, bInt, bok := toNumber(b)
	if !aok || !bok {
		return nil
	}
	r := op(af, bf)
	if aInt && bInt {
		return int64(r)
	}
	return r
}
