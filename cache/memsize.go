package cache

import "reflect"

// entryOverhead is the fixed per-entry bookkeeping charge applied on top of
// the estimated value size.
const entryOverhead = 64

// estimateSize walks a value and returns an approximate byte size: two bytes
// per string character, eight per number, four per bool, recursing into
// maps, slices, arrays, structs and pointers. It is a diagnostic
// approximation, not a tight bound.
func estimateSize(v any) int64 {
	if v == nil {
		return 0
	}
	return sizeOf(reflect.ValueOf(v), 0)
}

// maxSizeDepth bounds recursion so cyclic structures cannot hang the walk.
const maxSizeDepth = 8

func sizeOf(v reflect.Value, depth int) int64 {
	if depth > maxSizeDepth {
		return 0
	}
	switch v.Kind() {
	case reflect.String:
		return int64(2 * len(v.String()))
	case reflect.Bool:
		return 4
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 8
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return 0
		}
		return sizeOf(v.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return 0
		}
		var total int64
		for i := 0; i < v.Len(); i++ {
			total += sizeOf(v.Index(i), depth+1)
		}
		return total
	case reflect.Map:
		if v.IsNil() {
			return 0
		}
		var total int64
		iter := v.MapRange()
		for iter.Next() {
			total += sizeOf(iter.Key(), depth+1)
			total += sizeOf(iter.Value(), depth+1)
		}
		return total
	case reflect.Struct:
		var total int64
		for i := 0; i < v.NumField(); i++ {
			total += sizeOf(v.Field(i), depth+1)
		}
		return total
	}
	return 0
}
