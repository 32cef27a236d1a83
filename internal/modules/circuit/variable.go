// Package circuit provides the backend-agnostic description of parametrized
// quantum circuits: variables, gate parameters, gates, and gate sequences.
// Everything in this package is an immutable value type with structural
// equality, so circuits can be shared freely between objectives and cached
// by content rather than by identity.
package circuit

// Variable is an immutable named scalar parameter. Two variables are the
// same parameter iff their names are equal; there is no owner and no state.
type Variable struct {
	Name string
}

// NewVariable creates a variable with the given name.
func NewVariable(name string) Variable {
	return Variable{Name: name}
}

// String returns the variable name.
func (v Variable) String() string {
	return v.Name
}
