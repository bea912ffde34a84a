package testutil

import (
	"fmt"
	"reflect"
	"sort"
)

// PrettyPrint renders v in a human-readable form for test failure messages.
func PrettyPrint(v interface{}) string {
	return prettyPrint(reflect.ValueOf(v), 3)
}

func prettyPrint(v reflect.Value, depth int) string {
	if depth < 0 {
		return "<max_depth>"
	}
	switch v.Kind() {
	case reflect.Invalid:
		return "nil"
	case reflect.String:
		return fmt.Sprintf("%q", v.String())
	case reflect.Ptr:
		if v.IsNil() {
			return "nil"
		}
		return "&" + prettyPrint(v.Elem(), depth-1)
	case reflect.Interface:
		return prettyPrint(v.Elem(), depth-1)
	case reflect.Map:
		keys := v.MapKeys()
		entries := make([]string, len(keys))
		for i, k := range keys {
			entries[i] = prettyPrint(k, depth-1) + ":" + prettyPrint(v.MapIndex(k), depth-1)
		}
		sort.Strings(entries)
		return fmt.Sprintf("%s{%s}", v.Type(), joinComma(entries))
	case reflect.Struct:
		n := v.NumField()
		entries := make([]string, n)
		for i := 0; i < n; i++ {
			entries[i] = v.Type().Field(i).Name + ":" + prettyPrint(forceExport(v.Field(i)), depth-1)
		}
		return fmt.Sprintf("%s{%s}", v.Type(), joinComma(entries))
	case reflect.Array, reflect.Slice:
		l := v.Len()
		entries := make([]string, l)
		for i := 0; i < l; i++ {
			entries[i] = prettyPrint(v.Index(i), depth-1)
		}
		return fmt.Sprintf("%s{%s}", v.Type(), joinComma(entries))
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
