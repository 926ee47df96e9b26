// Package milp is a small mixed-integer linear programming backend:
// bounded continuous and binary variables, linear constraints, a maximize
// objective, and a Solve that requests an integer-optimal solution.
//
// LP relaxations are solved with a dense two-phase simplex; integrality is
// obtained by best-bound branch and bound seeded with a rounding dive.
// Pivoting and branching rules are deterministic, so identical problems
// yield identical solutions.
package milp

import (
	"fmt"
	"math"
)

// Sense of a linear constraint.
type Sense int

const (
	LE Sense = iota // <=
	GE              // >=
	EQ              // ==
)

// Status reports the outcome of a solve.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusNotSolved
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusUnbounded:
		return "Unbounded"
	default:
		return "NotSolved"
	}
}

// VarID identifies a variable within its Problem.
type VarID int

type constraint struct {
	terms map[VarID]float64
	sense Sense
	rhs   float64
}

// Problem accumulates variables, constraints and an objective.
// Not safe for concurrent use; build one per solve.
type Problem struct {
	name    string
	varName []string
	lb, ub  []float64
	integer []bool
	obj     []float64
	cons    []constraint

	// NodeLimit caps branch-and-bound nodes. 0 means DefaultNodeLimit.
	NodeLimit int
}

// DefaultNodeLimit caps branch-and-bound nodes, where one node is one LP
// relaxation solve. A daily dispatch window closes in well under a hundred
// nodes; hitting the limit means the model is degenerate, and the solve
// reports NotSolved rather than silently returning a possibly suboptimal
// incumbent.
const DefaultNodeLimit = 20000

func NewProblem(name string) *Problem {
	return &Problem{name: name}
}

// AddVar adds a continuous variable with the given bounds. Lower bounds must
// be finite; ub may be math.Inf(1).
func (p *Problem) AddVar(name string, lb, ub float64) VarID {
	if math.IsInf(lb, -1) {
		panic(fmt.Sprintf("milp: variable %s has no finite lower bound", name))
	}
	p.varName = append(p.varName, name)
	p.lb = append(p.lb, lb)
	p.ub = append(p.ub, ub)
	p.integer = append(p.integer, false)
	p.obj = append(p.obj, 0)
	return VarID(len(p.varName) - 1)
}

// AddBinary adds a 0/1 integer variable.
func (p *Problem) AddBinary(name string) VarID {
	v := p.AddVar(name, 0, 1)
	p.integer[v] = true
	return v
}

func (p *Problem) NumVars() int { return len(p.varName) }

// Expr is a linear expression over a problem's variables.
type Expr struct {
	terms map[VarID]float64
}

// Sum starts an empty linear expression.
func Sum() *Expr {
	return &Expr{terms: make(map[VarID]float64)}
}

// Add accumulates coef*v into the expression and returns it for chaining.
func (e *Expr) Add(coef float64, v VarID) *Expr {
	e.terms[v] += coef
	return e
}

// AddConstraint appends e (sense) rhs.
func (p *Problem) AddConstraint(e *Expr, s Sense, rhs float64) {
	terms := make(map[VarID]float64, len(e.terms))
	for v, c := range e.terms {
		if c != 0 {
			terms[v] = c
		}
	}
	p.cons = append(p.cons, constraint{terms: terms, sense: s, rhs: rhs})
}

// Maximize sets the objective. Coefficients accumulate if a variable appears
// more than once.
func (p *Problem) Maximize(e *Expr) {
	for v, c := range e.terms {
		p.obj[v] += c
	}
}

// Solution is the result of a solve. Values are defined only when Status is
// StatusOptimal.
type Solution struct {
	Status    Status
	Objective float64
	values    []float64
}

// Value returns the solved value of v, or 0 when the solve was not optimal.
func (s *Solution) Value(v VarID) float64 {
	if s.values == nil || int(v) >= len(s.values) {
		return 0
	}
	return s.values[v]
}
