package isoheap

import (
	"fmt"
	"reflect"
	"unsafe"
)

// Site registers a call site for objects of type T. The type identity is
// T's fully qualified type string.
//
// T must not contain Go pointers: bucket memory lives outside the Go heap
// and is not scanned by the garbage collector.
func Site[T any](h *Heap, opts ...SiteOption) (*CallSite, error) {
	typ := reflect.TypeFor[T]()
	if hasPointers(typ) {
		return nil, fmt.Errorf("%w: %s", ErrPointerType, typ)
	}
	return h.RegisterCallSite(typeIdentity(typ), typ.Size(), uintptr(typ.Align()), opts...) //nolint:gosec // Align is small and positive
}

// Alloc allocates a zeroed T at site.
func Alloc[T any](h *Heap, site *CallSite) (*T, error) {
	var zero T
	p, err := h.Allocate(site, unsafe.Sizeof(zero))
	if err != nil {
		return nil, err
	}
	return (*T)(p), nil
}

// Free releases an object returned by Alloc.
func Free[T any](h *Heap, p *T) error {
	return h.Deallocate(unsafe.Pointer(p))
}

func typeIdentity(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// hasPointers reports whether values of t may hold pointers the garbage
// collector must see.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		// Pointers, slices, strings, maps, channels, funcs, interfaces and
		// unsafe.Pointer.
		return true
	}
}
