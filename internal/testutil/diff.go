package testutil

import (
	"fmt"
	"reflect"
)

// diffable types can report their own human-readable diff against another
// value of the same type.
type diffable interface {
	Diff(other interface{}) string
}

// Diff returns a human-readable description of how a and b differ, or an
// empty string if they are equal. Struct fields tagged `deepequal:"ignore"`
// are skipped, for fields like timestamps or caches that shouldn't affect
// equality.
func Diff(a, b interface{}) string {
	return diffImpl(a, b, nil)
}

type edge struct{ from, to uintptr }

func diffImpl(a, b interface{}, seen map[edge]struct{}) string {
	av := reflect.ValueOf(a)
	bv := reflect.ValueOf(b)

	if !av.IsValid() {
		if !bv.IsValid() {
			return ""
		}
		return fmt.Sprintf("one value is nil and the other is of type: %T", b)
	} else if !bv.IsValid() {
		return fmt.Sprintf("one value is nil and the other is of type: %T", a)
	}
	if av.Type() != bv.Type() {
		return fmt.Sprintf("types are different: %T vs %T", a, b)
	}

	switch a := a.(type) {
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, string:
		if a != b {
			return fmt.Sprintf("%v != %v", a, b)
		}
		return ""
	}

	if ac, ok := a.(diffable); ok {
		return ac.Diff(b)
	}
	if ac, ok := a.(comparable); ok {
		if ac.Equal(b) {
			return ""
		}
		return fmt.Sprintf("values differ: %s vs %s", PrettyPrint(a), PrettyPrint(b))
	}

	switch av.Kind() {
	case reflect.Array, reflect.Slice:
		if c, d := nilCheck(av, bv); c {
			return d
		}
		l := av.Len()
		if l != bv.Len() {
			return fmt.Sprintf("slices have different length: %d != %d", l, bv.Len())
		}
		for i := 0; i < l; i++ {
			if d := diffImpl(av.Index(i).Interface(), bv.Index(i).Interface(), seen); d != "" {
				return fmt.Sprintf("at index %d: %s", i, d)
			}
		}
		return ""

	case reflect.Map:
		if c, d := nilCheck(av, bv); c {
			return d
		}
		if av.Len() != bv.Len() {
			return fmt.Sprintf("maps have different size: %d != %d", av.Len(), bv.Len())
		}
		for _, k := range av.MapKeys() {
			be := bv.MapIndex(k)
			if !be.IsValid() {
				return fmt.Sprintf("key %s is missing in the second map", PrettyPrint(k.Interface()))
			}
			if d := diffImpl(av.MapIndex(k).Interface(), be.Interface(), seen); d != "" {
				return fmt.Sprintf("for key %s: %s", PrettyPrint(k.Interface()), d)
			}
		}
		return ""

	case reflect.Ptr, reflect.Interface:
		if c, d := nilCheck(av, bv); c {
			return d
		}
		av = av.Elem()
		bv = bv.Elem()
		if av.CanAddr() && bv.CanAddr() {
			e := edge{from: av.UnsafeAddr(), to: bv.UnsafeAddr()}
			if seen == nil {
				seen = make(map[edge]struct{})
			} else if _, ok := seen[e]; ok {
				return ""
			}
			seen[e] = struct{}{}
		}
		return diffImpl(av.Interface(), bv.Interface(), seen)

	case reflect.Struct:
		typ := av.Type()
		for i, n := 0, av.NumField(); i < n; i++ {
			if typ.Field(i).Tag.Get("deepequal") == "ignore" {
				continue
			}
			af := forceExport(av.Field(i))
			bf := forceExport(bv.Field(i))
			if d := diffImpl(af.Interface(), bf.Interface(), seen); d != "" {
				return fmt.Sprintf("field %q differs: %s", typ.Field(i).Name, d)
			}
		}
		return ""

	default:
		return fmt.Sprintf("unsupported type for comparison: %T", a)
	}
}

func nilCheck(a, b reflect.Value) (bool, string) {
	if a.IsNil() {
		if b.IsNil() {
			return true, ""
		}
		return true, fmt.Sprintf("one value is nil, the other is not: %s", PrettyPrint(b.Interface()))
	}
	if b.IsNil() {
		return true, fmt.Sprintf("one value is nil, the other is not: %s", PrettyPrint(a.Interface()))
	}
	return false, ""
}
