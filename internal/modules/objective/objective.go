package objective

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrMissingVariable is returned when an evaluation omits a variable the
// objective requires. Extra unused variables are ignored.
var ErrMissingVariable = errors.New("missing variable")

// ErrNotCompiled is returned when an objective with unbound expectation
// leaves is evaluated.
var ErrNotCompiled = errors.New("objective contains uncompiled expectation values")

// NodeKind identifies the role of a DAG node.
type NodeKind int

// Node kinds. Expectation and Const are leaves; the rest are combinators.
const (
	NodeExpectation NodeKind = iota
	NodeConst
	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodePow
	NodeTransform
)

// Leaf is the view of one expectation leaf, including its compile binding.
// Exec is nil on raw (uncompiled) leaves.
type Leaf struct {
	E       *Expectation
	Exec    Executable
	Backend string
}

// node is one vertex of the DAG. Nodes are never mutated after construction;
// a node may be shared by many parents and many Objectives.
type node struct {
	kind      NodeKind
	value     float64 // NodeConst
	leaf      Leaf    // NodeExpectation
	transform Transform
	operands  []*node
}

// Objective is an immutable handle on a DAG of algebraic combinations over
// expectation values and constants. The zero value is not usable; build
// objectives with FromExpectation, Constant, or the arithmetic methods.
// Objective values are comparable: two handles are equal iff they share the
// same root node.
type Objective struct {
	root *node
}

// FromExpectation wraps a single raw expectation leaf as an objective.
func FromExpectation(e *Expectation) Objective {
	return Objective{root: &node{kind: NodeExpectation, leaf: Leaf{E: e}}}
}

// FromLeaf wraps an expectation leaf with an existing compile binding. Used
// by the compiler to assemble bound objectives.
func FromLeaf(l Leaf) Objective {
	return Objective{root: &node{kind: NodeExpectation, leaf: l}}
}

// Constant wraps a numeric constant as an objective.
func Constant(v float64) Objective {
	return Objective{root: &node{kind: NodeConst, value: v}}
}

func combine(kind NodeKind, operands ...Objective) Objective {
	ns := make([]*node, len(operands))
	for i, o := range operands {
		ns[i] = o.root
	}
	return Objective{root: &node{kind: kind, operands: ns}}
}

// Add returns o + other. The operands are referenced, never copied, so
// shared sub-structure stays shared.
func (o Objective) Add(other Objective) Objective { return combine(NodeAdd, o, other) }

// Sub returns o - other.
func (o Objective) Sub(other Objective) Objective { return combine(NodeSub, o, other) }

// Mul returns o * other.
func (o Objective) Mul(other Objective) Objective { return combine(NodeMul, o, other) }

// Div returns o / other.
func (o Objective) Div(other Objective) Objective { return combine(NodeDiv, o, other) }

// Pow returns o ** other.
func (o Objective) Pow(other Objective) Objective { return combine(NodePow, o, other) }

// AddScalar returns o + v.
func (o Objective) AddScalar(v float64) Objective { return o.Add(Constant(v)) }

// SubScalar returns o - v.
func (o Objective) SubScalar(v float64) Objective { return o.Sub(Constant(v)) }

// MulScalar returns o * v.
func (o Objective) MulScalar(v float64) Objective { return o.Mul(Constant(v)) }

// DivScalar returns o / v.
func (o Objective) DivScalar(v float64) Objective { return o.Div(Constant(v)) }

// PowScalar returns o ** v.
func (o Objective) PowScalar(v float64) Objective { return o.Pow(Constant(v)) }

// Neg returns -o.
func (o Objective) Neg() Objective { return o.MulScalar(-1) }

// Apply returns t(o).
func (o Objective) Apply(t Transform) Objective {
	return Objective{root: &node{kind: NodeTransform, transform: t, operands: []*node{o.root}}}
}

// Kind returns the kind of the root node.
func (o Objective) Kind() NodeKind {
	return o.root.kind
}

// Operands returns the child objectives of a combinator root, in order.
func (o Objective) Operands() []Objective {
	out := make([]Objective, len(o.root.operands))
	for i, n := range o.root.operands {
		out[i] = Objective{root: n}
	}
	return out
}

// ConstValue returns the value of a constant root node.
func (o Objective) ConstValue() float64 {
	return o.root.value
}

// LeafInfo returns the leaf view of an expectation root node.
func (o Objective) LeafInfo() (Leaf, bool) {
	if o.root.kind != NodeExpectation {
		return Leaf{}, false
	}
	return o.root.leaf, true
}

// TransformInfo returns the transform of a transform root node.
func (o Objective) TransformInfo() (Transform, bool) {
	if o.root.kind != NodeTransform {
		return Transform{}, false
	}
	return o.root.transform, true
}

// walk visits every node exactly once in pre-order. Operand order is fixed,
// so the traversal is deterministic for structurally equal DAGs.
func (o Objective) walk(visit func(*node)) {
	seen := make(map[*node]bool)
	var rec func(*node)
	rec = func(n *node) {
		if seen[n] {
			return
		}
		seen[n] = true
		visit(n)
		for _, c := range n.operands {
			rec(c)
		}
	}
	rec(o.root)
}

// Variables returns the unique variable names appearing anywhere in the DAG,
// ordered by first discovery in a deterministic pre-order traversal. Repeated
// calls and structurally equal objectives produce the same order.
func (o Objective) Variables() []string {
	seen := make(map[string]bool)
	var names []string
	o.walk(func(n *node) {
		if n.kind != NodeExpectation {
			return
		}
		for _, name := range n.leaf.E.Variables() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	})
	return names
}

// Leaves returns one Leaf per distinct (expectation, binding) pair in
// traversal order. Two raw references to the same interned expectation
// collapse into one entry; the same expectation bound to two different
// backends stays two entries.
func (o Objective) Leaves() []Leaf {
	type leafID struct {
		e       *Expectation
		exec    Executable
		backend string
	}
	seen := make(map[leafID]bool)
	var leaves []Leaf
	o.walk(func(n *node) {
		if n.kind != NodeExpectation {
			return
		}
		id := leafID{e: n.leaf.E, exec: n.leaf.Exec, backend: n.leaf.Backend}
		if !seen[id] {
			seen[id] = true
			leaves = append(leaves, n.leaf)
		}
	})
	return leaves
}

// Backends returns the sorted distinct backend names bound to leaves.
// Raw leaves contribute nothing.
func (o Objective) Backends() []string {
	set := make(map[string]bool)
	for _, l := range o.Leaves() {
		if l.Backend != "" {
			set[l.Backend] = true
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsCompiled reports whether every expectation leaf carries an executable.
func (o Objective) IsCompiled() bool {
	for _, l := range o.Leaves() {
		if l.Exec == nil {
			return false
		}
	}
	return true
}

// Rebind returns a new objective where every expectation leaf is replaced by
// the binding fn returns for it. Node sharing is preserved: a node referenced
// by several parents is rebuilt once. Non-leaf structure is untouched.
func (o Objective) Rebind(fn func(Leaf) (Executable, string, error)) (Objective, error) {
	memo := make(map[*node]*node)
	var rec func(*node) (*node, error)
	rec = func(n *node) (*node, error) {
		if m, ok := memo[n]; ok {
			return m, nil
		}
		var out *node
		if n.kind == NodeExpectation {
			exec, backend, err := fn(n.leaf)
			if err != nil {
				return nil, err
			}
			out = &node{kind: NodeExpectation, leaf: Leaf{E: n.leaf.E, Exec: exec, Backend: backend}}
		} else {
			operands := make([]*node, len(n.operands))
			for i, c := range n.operands {
				nc, err := rec(c)
				if err != nil {
					return nil, err
				}
				operands[i] = nc
			}
			out = &node{kind: n.kind, value: n.value, transform: n.transform, operands: operands}
		}
		memo[n] = out
		return out, nil
	}
	root, err := rec(o.root)
	if err != nil {
		return Objective{}, err
	}
	return Objective{root: root}, nil
}

// Evaluate computes the objective value at a variable binding. Every
// expectation leaf must be bound to an executable; each distinct node is
// evaluated exactly once per call, so a leaf shared by several parents runs
// once. Missing required variables fail before any leaf executes.
func (o Objective) Evaluate(bindings map[string]float64, samples int) (float64, error) {
	for _, name := range o.Variables() {
		if _, ok := bindings[name]; !ok {
			return 0, fmt.Errorf("%w: %q", ErrMissingVariable, name)
		}
	}

	memo := make(map[*node]float64)
	var rec func(*node) (float64, error)
	rec = func(n *node) (float64, error) {
		if v, ok := memo[n]; ok {
			return v, nil
		}
		var v float64
		switch n.kind {
		case NodeConst:
			v = n.value
		case NodeExpectation:
			if n.leaf.Exec == nil {
				return 0, fmt.Errorf("%w: %s", ErrNotCompiled, n.leaf.E)
			}
			var err error
			v, err = n.leaf.Exec.Run(bindings, samples)
			if err != nil {
				return 0, fmt.Errorf("evaluating %s: %w", n.leaf.E, err)
			}
		case NodeTransform:
			a, err := rec(n.operands[0])
			if err != nil {
				return 0, err
			}
			v = n.transform.Eval(a)
		default:
			a, err := rec(n.operands[0])
			if err != nil {
				return 0, err
			}
			b, err := rec(n.operands[1])
			if err != nil {
				return 0, err
			}
			switch n.kind {
			case NodeAdd:
				v = a + b
			case NodeSub:
				v = a - b
			case NodeMul:
				v = a * b
			case NodeDiv:
				v = a / b
			case NodePow:
				v = math.Pow(a, b)
			}
		}
		memo[n] = v
		return v, nil
	}
	return rec(o.root)
}

// String returns a human-readable summary: unique leaf count, variable
// order, and the compiled-type tag of each distinct leaf.
func (o Objective) String() string {
	leaves := o.Leaves()
	tags := make([]string, len(leaves))
	for i, l := range leaves {
		if l.Exec == nil {
			tags[i] = "raw"
		} else {
			tags[i] = l.Backend
		}
	}
	return fmt.Sprintf("Objective(%d unique expectation values, variables=%v, types=[%s])",
		len(leaves), o.Variables(), strings.Join(tags, " "))
}
