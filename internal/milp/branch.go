package milp

import (
	"container/heap"
	"context"
	"math"
)

// intTol is the integrality tolerance: a relaxed value within intTol of an
// integer counts as integral.
const intTol = 1e-6

// pruneEps closes a subtree whose relaxation bound does not beat the
// incumbent by more than this.
const pruneEps = 1e-9

// Solve requests an integer-optimal solution. Open nodes are explored
// best-bound first, so the search ends as soon as the best open relaxation no
// longer beats the incumbent; a rounding dive from the root seeds the
// incumbent so that pruning bites early. The context is checked at every
// node; cancellation returns ctx.Err().
func (p *Problem) Solve(ctx context.Context) (*Solution, error) {
	limit := p.NodeLimit
	if limit <= 0 {
		limit = DefaultNodeLimit
	}
	s := &bbState{p: p, nodeLimit: limit, bestObj: math.Inf(-1)}

	root := s.evaluate(append([]float64(nil), p.lb...), append([]float64(nil), p.ub...))
	if root.status == lpOptimal && !s.aborted {
		if err := s.dive(ctx, root); err != nil {
			return nil, err
		}
		open := &nodeQueue{root}
		if err := s.search(ctx, open); err != nil {
			return nil, err
		}
	}

	sol := &Solution{}
	switch {
	case s.unbounded:
		sol.Status = StatusUnbounded
	case s.aborted:
		sol.Status = StatusNotSolved
	case s.found:
		sol.Status = StatusOptimal
		sol.Objective = s.bestObj
		sol.values = s.bestX
	default:
		sol.Status = StatusInfeasible
	}
	return sol, nil
}

type bbState struct {
	p         *Problem
	nodes     int
	nodeLimit int
	seq       int

	found     bool
	unbounded bool
	aborted   bool
	bestObj   float64
	bestX     []float64
}

// node is one open subproblem: its bound overrides and the relaxation
// already solved for it.
type node struct {
	lb, ub []float64
	x      []float64
	bound  float64
	status lpStatus
	seq    int
}

// nodeQueue is a max-heap on the relaxation bound; insertion order breaks
// ties, keeping the search deterministic.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].bound != q[j].bound {
		return q[i].bound > q[j].bound
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int)   { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)     { *q = append(*q, x.(*node)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// evaluate solves the relaxation under the given bounds, spending one node of
// the budget. An integral optimum is recorded as incumbent on the spot.
func (s *bbState) evaluate(lb, ub []float64) *node {
	n := &node{lb: lb, ub: ub, seq: s.seq}
	s.seq++
	if s.nodes >= s.nodeLimit {
		s.aborted = true
		n.status = lpAborted
		return n
	}
	s.nodes++

	st, x, obj := solveRelaxation(s.p, lb, ub)
	n.status = st
	switch st {
	case lpAborted:
		s.aborted = true
	case lpUnbounded:
		s.unbounded = true
	case lpOptimal:
		n.x, n.bound = x, obj
		if s.branchVar(x) < 0 && obj > s.bestObj {
			xr := append([]float64(nil), x...)
			for j, isInt := range s.p.integer {
				if isInt {
					xr[j] = math.Round(xr[j])
				}
			}
			s.bestObj, s.bestX, s.found = obj, xr, true
		}
	}
	return n
}

// branchVar picks the integer variable to branch on: the most fractional,
// weighted by its objective coefficient so high-stakes decisions are pinned
// down first. Lowest index wins ties. Returns -1 when the point is integral.
func (s *bbState) branchVar(x []float64) int {
	best, bestScore := -1, 0.0
	for j, isInt := range s.p.integer {
		if !isInt {
			continue
		}
		f := x[j] - math.Floor(x[j])
		d := math.Min(f, 1-f)
		if d <= intTol {
			continue
		}
		if score := d * (1 + math.Abs(s.p.obj[j])); score > bestScore {
			bestScore, best = score, j
		}
	}
	return best
}

// dive rounds its way from a relaxation down to an integer point, fixing the
// branch variable to its nearest value and re-solving. It either lands an
// incumbent or runs into infeasibility and gives up; the best-bound search
// is correct without it, just slower to prune.
func (s *bbState) dive(ctx context.Context, from *node) error {
	lb := append([]float64(nil), from.lb...)
	ub := append([]float64(nil), from.ub...)
	x := from.x
	for !s.aborted {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		j := s.branchVar(x)
		if j < 0 {
			return nil
		}
		v := math.Round(x[j])
		lb[j], ub[j] = v, v
		nd := s.evaluate(append([]float64(nil), lb...), append([]float64(nil), ub...))
		if nd.status != lpOptimal {
			return nil
		}
		x = nd.x
	}
	return nil
}

// search runs best-bound branch and bound over the open queue.
func (s *bbState) search(ctx context.Context, open *nodeQueue) error {
	for open.Len() > 0 && !s.aborted && !s.unbounded {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := heap.Pop(open).(*node)
		if s.found && n.bound <= s.bestObj+pruneEps {
			return nil
		}
		j := s.branchVar(n.x)
		if j < 0 {
			continue
		}

		// Explore the side the relaxation leans toward first.
		floor := math.Floor(n.x[j])
		up := n.x[j]-floor >= 0.5
		for k := 0; k < 2; k++ {
			lb := append([]float64(nil), n.lb...)
			ub := append([]float64(nil), n.ub...)
			if up {
				lb[j] = floor + 1
			} else {
				ub[j] = floor
			}
			up = !up

			child := s.evaluate(lb, ub)
			if child.status != lpOptimal {
				continue
			}
			if s.found && child.bound <= s.bestObj+pruneEps {
				continue
			}
			if s.branchVar(child.x) >= 0 {
				heap.Push(open, child)
			}
		}
	}
	return nil
}
