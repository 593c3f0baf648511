// Package fieldpath addresses the input fields of a deal model by dot-path
// ("debt.senior_rate") through an explicit registry of typed accessors.
// Every path is bound once, at registration, to a pointer getter, so
// assumption overrides are type-checked without runtime reflection.
package fieldpath

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

var (
	// ErrUnknownPath is returned when a path is not registered, or when a
	// registered path cannot be resolved on a particular value (for
	// example, a nil nested pointer).
	ErrUnknownPath = errors.New("unknown field path")

	// ErrTypeMismatch is returned when a value cannot be assigned to the
	// field kind registered at a path.
	ErrTypeMismatch = errors.New("field type mismatch")
)

// Kind is the value type stored at a path.
type Kind int

const (
	KindFloat64 Kind = iota + 1
	KindInt
	KindString
	KindBool
	KindFloat64Slice
)

func (k Kind) String() string {
	switch k {
	case KindFloat64:
		return "float64"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindFloat64Slice:
		return "[]float64"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Numeric reports whether values of this kind can be swept as a scalar.
func (k Kind) Numeric() bool {
	return k == KindFloat64 || k == KindInt
}

type field[T any] struct {
	kind Kind
	get  func(*T) (any, bool)
	set  func(*T, any) error
}

// Registry maps dot-paths to the fields of T.
type Registry[T any] struct {
	fields map[string]field[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{fields: make(map[string]field[T])}
}

// Float64 registers a float64 field. ptr may return nil when the field
// lives behind an unset nested pointer.
func (r *Registry[T]) Float64(path string, ptr func(*T) *float64) *Registry[T] {
	r.fields[path] = field[T]{
		kind: KindFloat64,
		get: func(v *T) (any, bool) {
			p := ptr(v)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(v *T, value any) error {
			p := ptr(v)
			if p == nil {
				return ErrUnknownPath
			}
			f, ok := ToFloat(value)
			if !ok {
				return mismatch(path, KindFloat64, value)
			}
			*p = f
			return nil
		},
	}
	return r
}

// Int registers an int field. Float values are accepted only when they are
// integral.
func (r *Registry[T]) Int(path string, ptr func(*T) *int) *Registry[T] {
	r.fields[path] = field[T]{
		kind: KindInt,
		get: func(v *T) (any, bool) {
			p := ptr(v)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(v *T, value any) error {
			p := ptr(v)
			if p == nil {
				return ErrUnknownPath
			}
			f, ok := ToFloat(value)
			if !ok || f != math.Trunc(f) {
				return mismatch(path, KindInt, value)
			}
			*p = int(f)
			return nil
		},
	}
	return r
}

// String registers a string field.
func (r *Registry[T]) String(path string, ptr func(*T) *string) *Registry[T] {
	r.fields[path] = field[T]{
		kind: KindString,
		get: func(v *T) (any, bool) {
			p := ptr(v)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(v *T, value any) error {
			p := ptr(v)
			if p == nil {
				return ErrUnknownPath
			}
			s, ok := value.(string)
			if !ok {
				return mismatch(path, KindString, value)
			}
			*p = s
			return nil
		},
	}
	return r
}

// Bool registers a bool field.
func (r *Registry[T]) Bool(path string, ptr func(*T) *bool) *Registry[T] {
	r.fields[path] = field[T]{
		kind: KindBool,
		get: func(v *T) (any, bool) {
			p := ptr(v)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(v *T, value any) error {
			p := ptr(v)
			if p == nil {
				return ErrUnknownPath
			}
			b, ok := value.(bool)
			if !ok {
				return mismatch(path, KindBool, value)
			}
			*p = b
			return nil
		},
	}
	return r
}

// Float64Slice registers a []float64 field. Assigned slices are copied.
func (r *Registry[T]) Float64Slice(path string, ptr func(*T) *[]float64) *Registry[T] {
	r.fields[path] = field[T]{
		kind: KindFloat64Slice,
		get: func(v *T) (any, bool) {
			p := ptr(v)
			if p == nil {
				return nil, false
			}
			return append([]float64(nil), (*p)...), true
		},
		set: func(v *T, value any) error {
			p := ptr(v)
			if p == nil {
				return ErrUnknownPath
			}
			s, ok := ToFloatSlice(value)
			if !ok {
				return mismatch(path, KindFloat64Slice, value)
			}
			*p = s
			return nil
		},
	}
	return r
}

// Has reports whether path is registered.
func (r *Registry[T]) Has(path string) bool {
	_, ok := r.fields[path]
	return ok
}

// Kind returns the kind registered at path.
func (r *Registry[T]) Kind(path string) (Kind, bool) {
	f, ok := r.fields[path]
	return f.kind, ok
}

// Paths returns the registered paths in lexical order.
func (r *Registry[T]) Paths() []string {
	paths := make([]string, 0, len(r.fields))
	for p := range r.fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Get reads the value at path.
func (r *Registry[T]) Get(v *T, path string) (any, error) {
	f, ok := r.fields[path]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", path, ErrUnknownPath)
	}
	value, ok := f.get(v)
	if !ok {
		return nil, fmt.Errorf("get %q: unresolved: %w", path, ErrUnknownPath)
	}
	return value, nil
}

// Float reads a numeric field as float64. Non-numeric kinds return
// ErrTypeMismatch.
func (r *Registry[T]) Float(v *T, path string) (float64, error) {
	value, err := r.Get(v, path)
	if err != nil {
		return 0, err
	}
	f, ok := ToFloat(value)
	if !ok {
		return 0, fmt.Errorf("get %q: %s is not numeric: %w", path, r.fields[path].kind, ErrTypeMismatch)
	}
	return f, nil
}

// Set assigns value at path.
func (r *Registry[T]) Set(v *T, path string, value any) error {
	f, ok := r.fields[path]
	if !ok {
		return fmt.Errorf("set %q: %w", path, ErrUnknownPath)
	}
	if err := f.set(v, value); err != nil {
		if errors.Is(err, ErrUnknownPath) {
			return fmt.Errorf("set %q: unresolved: %w", path, err)
		}
		return err
	}
	return nil
}

// Apply assigns every assumption to v in path order. Paths that are not
// registered or cannot be resolved on v are skipped; a type mismatch stops
// the application and is returned.
func (r *Registry[T]) Apply(v *T, assumptions map[string]any) error {
	paths := make([]string, 0, len(assumptions))
	for p := range assumptions {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		err := r.Set(v, p, assumptions[p])
		if errors.Is(err, ErrUnknownPath) {
			slog.Debug("skipping unresolved assumption", "path", p)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func mismatch(path string, kind Kind, value any) error {
	return fmt.Errorf("set %q: cannot assign %T to %s: %w", path, value, kind, ErrTypeMismatch)
}
