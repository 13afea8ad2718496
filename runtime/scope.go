package runtime

import (
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scope is a chain of variable bindings over a root data value. Loop and
// with directives push child scopes; lookups walk the chain before falling
// back to the root data, so an inner binding shadows an outer one and both
// shadow the data.
type Scope struct {
	vars   map[string]any
	parent *Scope
	data   any
}

// NewScope returns a root scope over the render data.
func NewScope(data any) *Scope {
	return &Scope{data: data}
}

// Child pushes an empty binding layer.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s}
}

// Bind pushes a child scope holding a single binding.
func (s *Scope) Bind(name string, v any) *Scope {
	return &Scope{vars: map[string]any{name: v}, parent: s}
}

// Set adds a binding to this scope layer.
func (s *Scope) Set(name string, v any) {
	if s.vars == nil {
		s.vars = make(map[string]any)
	}
	s.vars[name] = v
}

// Data returns the root data value of the chain.
func (s *Scope) Data() any {
	for c := s; c != nil; c = c.parent {
		if c.parent == nil {
			return c.data
		}
	}
	return nil
}

// Lookup resolves a dot path. The first segment is resolved against the
// binding chain; if no binding holds that name the whole path resolves
// against the root data. Any segment that fails to resolve yields absence,
// never an error.
func (s *Scope) Lookup(path string) any {
	segs := strings.Split(path, ".")
	head := segs[0]
	for c := s; c != nil; c = c.parent {
		if v, ok := c.vars[head]; ok {
			return access(v, segs[1:])
		}
	}
	return access(s.Data(), segs)
}

// access walks the remaining path segments over maps, structs, pointers,
// and slices.
func access(v any, segs []string) any {
	for _, seg := range segs {
		if v == nil {
			return nil
		}
		// Fast path for the common context shape.
		if m, ok := v.(map[string]any); ok {
			nv, ok := m[seg]
			if !ok {
				return nil
			}
			v = nv
			continue
		}
		v = accessReflect(v, seg)
	}
	return v
}

func accessReflect(v any, seg string) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil
		}
		mv := rv.MapIndex(reflect.ValueOf(seg))
		if !mv.IsValid() {
			return nil
		}
		return mv.Interface()
	case reflect.Struct:
		fv := rv.FieldByName(seg)
		if !fv.IsValid() {
			fv = rv.FieldByName(exportName(seg))
		}
		if !fv.IsValid() || !fv.CanInterface() {
			return nil
		}
		return fv.Interface()
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil
		}
		return rv.Index(i).Interface()
	}
	return nil
}

// exportName upper-cases the first letter so user.name finds the exported
// Name field.
func exportName(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
