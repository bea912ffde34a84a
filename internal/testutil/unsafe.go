package testutil

import (
	"reflect"
	"unsafe"
)

// forceExport returns v's value with any "unexported field" read
// restriction lifted, so Diff can descend into unexported struct fields
// (the hybrid supervisor's own state, for instance).
func forceExport(v reflect.Value) reflect.Value {
	if !v.CanInterface() && v.CanAddr() {
		return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
	}
	return v
}
