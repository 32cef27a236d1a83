package circuit

import (
	"fmt"
	"hash"
	"math"
	"strconv"
)

// Parameter is the argument of a parametrized gate, stored as the affine form
//
//	scale*variable + offset
//
// Constants are represented with scale 0 and no variable. The affine form is
// closed under the parameter-shift transformation (shifting only changes the
// offset), which keeps shifted circuits inside the same gate family.
type Parameter struct {
	name   string  // variable name, empty for constants
	scale  float64 // multiplier of the variable, 0 for constants
	offset float64
}

// Const creates a constant parameter.
func Const(value float64) Parameter {
	return Parameter{offset: value}
}

// Param creates a parameter that is exactly one variable.
func Param(v Variable) Parameter {
	return Parameter{name: v.Name, scale: 1}
}

// Affine creates the parameter scale*v + offset.
func Affine(v Variable, scale, offset float64) Parameter {
	return Parameter{name: v.Name, scale: scale, offset: offset}
}

// IsConst reports whether the parameter does not depend on any variable.
func (p Parameter) IsConst() bool {
	return p.name == "" || p.scale == 0
}

// VariableName returns the referenced variable name, or "" for constants.
func (p Parameter) VariableName() string {
	if p.IsConst() {
		return ""
	}
	return p.name
}

// Scale returns the multiplier of the variable. This is the inner derivative
// used by the parameter-shift chain rule.
func (p Parameter) Scale() float64 {
	if p.IsConst() {
		return 0
	}
	return p.scale
}

// Shift returns a parameter whose offset is moved by delta. The variable and
// its scale are untouched, so the result is evaluated at the same binding.
func (p Parameter) Shift(delta float64) Parameter {
	p.offset += delta
	return p
}

// Value resolves the parameter against a variable binding. Constants ignore
// the binding entirely; a referenced variable must be present.
func (p Parameter) Value(bindings map[string]float64) (float64, error) {
	if p.IsConst() {
		return p.offset, nil
	}
	v, ok := bindings[p.name]
	if !ok {
		return 0, fmt.Errorf("variable %q is not bound", p.name)
	}
	return p.scale*v + p.offset, nil
}

// String renders the affine form for diagnostics.
func (p Parameter) String() string {
	if p.IsConst() {
		return strconv.FormatFloat(p.offset, 'g', -1, 64)
	}
	s := p.name
	if p.scale != 1 {
		s = strconv.FormatFloat(p.scale, 'g', -1, 64) + "*" + s
	}
	if p.offset != 0 {
		s += fmt.Sprintf("%+g", p.offset)
	}
	return s
}

// hashInto feeds the canonical form of the parameter into a running hash.
// Constants hash identically regardless of how they were constructed.
func (p Parameter) hashInto(h hash.Hash64) {
	if p.IsConst() {
		writeFloat(h, p.offset)
		return
	}
	_, _ = h.Write([]byte(p.name))
	writeFloat(h, p.scale)
	writeFloat(h, p.offset)
}

func writeFloat(h hash.Hash64, f float64) {
	bits := math.Float64bits(f)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	_, _ = h.Write(buf[:])
}
