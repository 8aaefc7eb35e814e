// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"sync"
)

var scannerInterface = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// ConvertFunc transforms a raw driver value before it is assigned to a
// member.
type ConvertFunc func(src any) (any, error)

type convKey struct {
	target reflect.Type
	source reflect.Type
}

// Converters is a registry of ConvertFuncs keyed by the target member type
// and the runtime type of the driver value. It is safe for concurrent use.
type Converters struct {
	mu    sync.RWMutex
	funcs map[convKey]ConvertFunc
}

// NewConverters returns an empty registry.
func NewConverters() *Converters {
	return &Converters{funcs: make(map[convKey]ConvertFunc)}
}

var defaultConverters = NewConverters()

// DefaultConverters returns the process wide registry.
func DefaultConverters() *Converters {
	return defaultConverters
}

// Register adds fn as the converter from source values to target members,
// replacing any previous one.
func (c *Converters) Register(target, source reflect.Type, fn ConvertFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs[convKey{target: target, source: source}] = fn
}

// Lookup returns the converter for the pair, if any.
func (c *Converters) Lookup(target, source reflect.Type) (ConvertFunc, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[convKey{target: target, source: source}]
	return fn, ok
}

// Assign stores the driver value src in dst, which must be settable.
//
// A nil src zeroes dst. Otherwise, in order of preference, src is passed
// through a registered converter, scanned by a dst implementing sql.Scanner,
// assigned directly or converted between compatible kinds. Pointer members
// are allocated as needed.
func (c *Converters) Assign(dst reflect.Value, src any) error {
	if !dst.CanSet() {
		return fmt.Errorf("cannot set value of type %s", dst.Type())
	}
	if src == nil {
		dst.SetZero()
		return nil
	}
	srcType := reflect.TypeOf(src)

	if fn, ok := c.Lookup(dst.Type(), srcType); ok {
		converted, err := fn(src)
		if err != nil {
			return fmt.Errorf("cannot convert %s to %s: %w", srcType, dst.Type(), err)
		}
		if converted == nil {
			dst.SetZero()
			return nil
		}
		src = converted
		srcType = reflect.TypeOf(src)
	}

	if reflect.PointerTo(dst.Type()).Implements(scannerInterface) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}

	if dst.Kind() == reflect.Pointer && !srcType.AssignableTo(dst.Type()) {
		elem := reflect.New(dst.Type().Elem())
		if err := c.Assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	switch {
	case srcType.AssignableTo(dst.Type()):
		dst.Set(sv)
		return nil
	case dst.Kind() == reflect.String && isBytes(srcType):
		dst.SetString(string(sv.Bytes()))
		return nil
	case isBytes(dst.Type()) && srcType.Kind() == reflect.String:
		dst.SetBytes([]byte(sv.String()))
		return nil
	case dst.Kind() == reflect.Bool && isInt(srcType.Kind()):
		dst.SetBool(sv.Int() != 0)
		return nil
	case isNumber(dst.Kind()) && isNumber(srcType.Kind()):
		return assignNumber(dst, sv)
	case dst.Kind() == reflect.String && srcType.Kind() == reflect.String:
		dst.SetString(sv.String())
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", srcType, dst.Type())
}

// assignNumber converts between numeric kinds, refusing values that do not
// fit the destination exactly.
func assignNumber(dst, sv reflect.Value) error {
	fail := func() error {
		return fmt.Errorf("cannot assign %s %v to %s: value out of range", sv.Type(), sv.Interface(), dst.Type())
	}
	switch {
	case isInt(dst.Kind()):
		switch {
		case isInt(sv.Kind()):
			if dst.OverflowInt(sv.Int()) {
				return fail()
			}
		case isUint(sv.Kind()):
			if sv.Uint() > math.MaxInt64 || dst.OverflowInt(int64(sv.Uint())) {
				return fail()
			}
		default:
			f := sv.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || dst.OverflowInt(int64(f)) {
				return fail()
			}
		}
	case isUint(dst.Kind()):
		switch {
		case isInt(sv.Kind()):
			if sv.Int() < 0 || dst.OverflowUint(uint64(sv.Int())) {
				return fail()
			}
		case isUint(sv.Kind()):
			if dst.OverflowUint(sv.Uint()) {
				return fail()
			}
		default:
			f := sv.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || dst.OverflowUint(uint64(f)) {
				return fail()
			}
		}
	default:
		if (sv.Kind() == reflect.Float32 || sv.Kind() == reflect.Float64) && dst.OverflowFloat(sv.Float()) {
			return fail()
		}
	}
	dst.Set(sv.Convert(dst.Type()))
	return nil
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
