package feature

import "fmt"

// Value is a single feature entry. Present distinguishes an observed zero
// from a feature that was never observed: absent features are encoded
// explicitly, never conflated with zero.
type Value struct {
	Num     float64
	Present bool
}

// Vector is an ordered mapping from the fixed feature-name set to values.
// Only schema names can be set; unknown features are never emitted.
type Vector struct {
	values map[string]Value
}

// NewVector returns a vector with every schema feature absent.
func NewVector() Vector {
	return Vector{values: make(map[string]Value, len(names))}
}

// Set records a value for a schema feature. Setting a name outside the
// schema is a programming error and is rejected.
func (v Vector) Set(name string, x float64) error {
	if !Known(name) {
		return fmt.Errorf("feature %q not in schema %s", name, SchemaVersion)
	}
	v.values[name] = Value{Num: x, Present: true}
	return nil
}

// SetBool records a boolean feature as 0/1.
func (v Vector) SetBool(name string, b bool) error {
	if b {
		return v.Set(name, 1)
	}
	return v.Set(name, 0)
}

// Get returns the value for name and whether it is present.
func (v Vector) Get(name string) (float64, bool) {
	val, ok := v.values[name]
	if !ok || !val.Present {
		return 0, false
	}
	return val.Num, true
}

// Dense projects the vector onto the given feature-name order, encoding
// absent entries as zero. Callers that need the absent/zero distinction use
// Get; Dense is the numeric view consumed by trained snapshots.
func (v Vector) Dense(order []string) []float64 {
	out := make([]float64, len(order))
	for i, n := range order {
		if x, ok := v.Get(n); ok {
			out[i] = x
		}
	}
	return out
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	c := NewVector()
	for k, val := range v.values {
		c.values[k] = val
	}
	return c
}
