package milp

import "math"

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
	lpAborted
)

const (
	pivotEps = 1e-9
	feasEps  = 1e-7
)

// solveRelaxation solves the LP relaxation of p under the given bound
// overrides, maximizing the objective. Two-phase dense simplex; the pivot
// rule is deterministic and bounded by an iteration cap, so every call
// terminates. Returned x is in the original variable space.
func solveRelaxation(p *Problem, lb, ub []float64) (lpStatus, []float64, float64) {
	n := len(lb)

	// Shift to y = x - lb with y >= 0.
	shiftUB := make([]float64, n)
	for j := 0; j < n; j++ {
		if ub[j] < lb[j] {
			return lpInfeasible, nil, 0
		}
		shiftUB[j] = ub[j] - lb[j]
	}

	type row struct {
		a     []float64
		sense Sense
		b     float64
	}
	rows := make([]row, 0, len(p.cons)+n)
	for _, c := range p.cons {
		a := make([]float64, n)
		b := c.rhs
		for v, coef := range c.terms {
			a[v] = coef
			b -= coef * lb[v]
		}
		rows = append(rows, row{a: a, sense: c.sense, b: b})
	}
	// Finite upper bounds become explicit rows.
	for j := 0; j < n; j++ {
		if !math.IsInf(shiftUB[j], 1) {
			a := make([]float64, n)
			a[j] = 1
			rows = append(rows, row{a: a, sense: LE, b: shiftUB[j]})
		}
	}

	// Normalize to b >= 0.
	for i := range rows {
		if rows[i].b < 0 {
			for j := range rows[i].a {
				rows[i].a[j] = -rows[i].a[j]
			}
			rows[i].b = -rows[i].b
			switch rows[i].sense {
			case LE:
				rows[i].sense = GE
			case GE:
				rows[i].sense = LE
			}
		}
	}

	m := len(rows)
	nSlack, nArt := 0, 0
	for _, r := range rows {
		if r.sense != EQ {
			nSlack++
		}
		if r.sense != LE {
			nArt++
		}
	}
	// Column layout: structural | slack/surplus | artificial | rhs.
	N := n + nSlack + nArt
	artStart := n + nSlack

	T := make([][]float64, m)
	basis := make([]int, m)
	active := make([]bool, m)
	sCol, aCol := n, artStart
	for i, r := range rows {
		T[i] = make([]float64, N+1)
		copy(T[i], r.a)
		T[i][N] = r.b
		active[i] = true
		switch r.sense {
		case LE:
			T[i][sCol] = 1
			basis[i] = sCol
			sCol++
		case GE:
			T[i][sCol] = -1
			sCol++
			T[i][aCol] = 1
			basis[i] = aCol
			aCol++
		case EQ:
			T[i][aCol] = 1
			basis[i] = aCol
			aCol++
		}
	}

	// Reduced-cost rows, minimization convention. Phase 2 minimizes -obj;
	// phase 1 minimizes the sum of artificial variables. Both rows are kept
	// current across every pivot so phase 2 can start immediately.
	r2 := make([]float64, N)
	for j := 0; j < n; j++ {
		r2[j] = -p.obj[j]
	}
	r1 := make([]float64, N)
	for j := 0; j < N; j++ {
		c1 := 0.0
		if j >= artStart {
			c1 = 1
		}
		sum := 0.0
		for i := 0; i < m; i++ {
			if basis[i] >= artStart {
				sum += T[i][j]
			}
		}
		r1[j] = c1 - sum
	}

	pivot := func(pi, pj int) {
		pv := T[pi][pj]
		for k := 0; k <= N; k++ {
			T[pi][k] /= pv
		}
		for i := 0; i < m; i++ {
			if i == pi || !active[i] {
				continue
			}
			if f := T[i][pj]; f != 0 {
				for k := 0; k <= N; k++ {
					T[i][k] -= f * T[pi][k]
				}
			}
		}
		if f := r1[pj]; f != 0 {
			for k := 0; k < N; k++ {
				r1[k] -= f * T[pi][k]
			}
		}
		if f := r2[pj]; f != 0 {
			for k := 0; k < N; k++ {
				r2[k] -= f * T[pi][k]
			}
		}
		basis[pi] = pj
	}

	maxIter := 200*(m+N) + 2000
	// iterate runs simplex on reduced-cost row r. Entering columns are
	// restricted to non-artificials (artificials start basic and must never
	// re-enter). Dantzig's rule picks the entering column; a long degenerate
	// stall switches to Bland's rule, which cannot cycle.
	iterate := func(r []float64) lpStatus {
		bland := false
		stall := 0
		for iter := 0; iter < maxIter; iter++ {
			enter := -1
			if bland {
				for j := 0; j < artStart; j++ {
					if r[j] < -pivotEps {
						enter = j
						break
					}
				}
			} else {
				most := -pivotEps
				for j := 0; j < artStart; j++ {
					if r[j] < most {
						most, enter = r[j], j
					}
				}
			}
			if enter < 0 {
				return lpOptimal
			}
			leave, best := -1, math.Inf(1)
			for i := 0; i < m; i++ {
				if !active[i] || T[i][enter] <= pivotEps {
					continue
				}
				ratio := T[i][N] / T[i][enter]
				if ratio < best-1e-12 {
					best, leave = ratio, i
				} else if math.Abs(ratio-best) <= 1e-12 && leave >= 0 && basis[i] < basis[leave] {
					leave = i
				}
			}
			if leave < 0 {
				return lpUnbounded
			}
			if best <= 1e-12 {
				if stall++; stall >= 64 {
					bland = true
				}
			} else {
				stall, bland = 0, false
			}
			pivot(leave, enter)
		}
		return lpAborted
	}

	if nArt > 0 {
		switch iterate(r1) {
		case lpAborted, lpUnbounded:
			// Phase 1 is bounded below by zero; anything but optimal
			// means numerical trouble.
			return lpAborted, nil, 0
		}
		infeas := 0.0
		for i := 0; i < m; i++ {
			if active[i] && basis[i] >= artStart {
				infeas += T[i][N]
			}
		}
		if infeas > feasEps {
			return lpInfeasible, nil, 0
		}
		// Drive remaining artificials out of the basis; a row with no
		// structural coefficient left is redundant and is dropped.
		for i := 0; i < m; i++ {
			if !active[i] || basis[i] < artStart {
				continue
			}
			pj := -1
			for j := 0; j < artStart; j++ {
				if math.Abs(T[i][j]) > pivotEps {
					pj = j
					break
				}
			}
			if pj < 0 {
				active[i] = false
				continue
			}
			pivot(i, pj)
		}
	}

	switch iterate(r2) {
	case lpUnbounded:
		return lpUnbounded, nil, 0
	case lpAborted:
		return lpAborted, nil, 0
	}

	y := make([]float64, n)
	for i := 0; i < m; i++ {
		if active[i] && basis[i] < n {
			y[basis[i]] = T[i][N]
		}
	}
	x := make([]float64, n)
	obj := 0.0
	for j := 0; j < n; j++ {
		x[j] = y[j] + lb[j]
		obj += p.obj[j] * x[j]
	}
	return lpOptimal, x, obj
}
