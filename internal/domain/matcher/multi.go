package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// findSubset returns the smallest group of candidates (in their given order)
// whose effective amounts sum to target within tolerance, or nil. Groups
// smaller than MinPartialPayments are not considered. Among groups of equal
// size, the first one in include-first enumeration order wins.
func (m *Matcher) findSubset(candidates []*reconcile.BankTransaction, target decimal.Decimal) []*reconcile.BankTransaction {
	if len(candidates) < m.config.MinPartialPayments {
		return nil
	}

	amounts := make([]decimal.Decimal, len(candidates))
	for i, tx := range candidates {
		amounts[i] = tx.EffectiveAmount()
	}

	var picked []int
	if len(amounts) <= m.config.MaxSubsetCandidates {
		picked = searchSubset(amounts, target, m.config.SubsetTolerance, m.config.MinPartialPayments)
	} else {
		m.logger.Debug("subset search using cent table",
			"candidates", len(amounts),
			"target", target.StringFixed(2))
		var ok bool
		picked, ok = centSubset(amounts, target, m.config.SubsetTolerance, m.config.MinPartialPayments)
		if !ok {
			m.logger.Warn("invoice too large for the cent table, searching the first candidates only",
				"candidates", len(amounts),
				"searched", m.config.MaxSubsetCandidates,
				"target", target.StringFixed(2))
			picked = searchSubset(amounts[:m.config.MaxSubsetCandidates], target, m.config.SubsetTolerance, m.config.MinPartialPayments)
		}
	}
	if picked == nil {
		return nil
	}

	out := make([]*reconcile.BankTransaction, len(picked))
	for i, idx := range picked {
		out[i] = candidates[idx]
	}
	return out
}

// subsetSearch is a depth-first include/exclude walk that keeps the smallest
// qualifying group and never descends into branches that cannot beat it.
type subsetSearch struct {
	amounts   []decimal.Decimal
	target    decimal.Decimal
	tolerance decimal.Decimal
	ceiling   decimal.Decimal
	floor     decimal.Decimal
	minSize   int

	// remaining[i] is the sum of amounts[i:].
	remaining []decimal.Decimal

	current []int
	best    []int
}

func searchSubset(amounts []decimal.Decimal, target, tolerance decimal.Decimal, minSize int) []int {
	s := &subsetSearch{
		amounts:   amounts,
		target:    target,
		tolerance: tolerance,
		ceiling:   target.Add(tolerance),
		floor:     target.Sub(tolerance),
		minSize:   minSize,
		remaining: make([]decimal.Decimal, len(amounts)+1),
	}
	s.remaining[len(amounts)] = decimal.Zero
	for i := len(amounts) - 1; i >= 0; i-- {
		s.remaining[i] = s.remaining[i+1].Add(amounts[i])
	}
	s.walk(0, decimal.Zero)
	return s.best
}

func (s *subsetSearch) walk(idx int, sum decimal.Decimal) {
	if len(s.current) >= s.minSize && withinTolerance(sum, s.target, s.tolerance) {
		if s.best == nil || len(s.current) < len(s.best) {
			s.best = append([]int(nil), s.current...)
		}
		return
	}
	if idx >= len(s.amounts) || sum.GreaterThan(s.ceiling) {
		return
	}
	// Everything left would still fall short.
	if sum.Add(s.remaining[idx]).LessThan(s.floor) {
		return
	}
	// Any group found below here has at least one more member.
	if s.best != nil && len(s.current)+1 >= len(s.best) {
		return
	}

	s.current = append(s.current, idx)
	s.walk(idx+1, sum.Add(s.amounts[idx]))
	s.current = s.current[:len(s.current)-1]

	s.walk(idx+1, sum)
}

func withinTolerance(sum, target, tolerance decimal.Decimal) bool {
	return sum.Sub(target).Abs().LessThanOrEqual(tolerance)
}

// maxCentCells bounds the cent table (cents times size classes). About
// 128MB of int32 cells; larger tables fall back to the walk.
const maxCentCells = 1 << 25

// centNode is one step of a persistent predecessor list: the candidate added
// and the node it extended. Node 0 is the empty group.
type centNode struct {
	idx  int32
	size int32
	prev int32
}

// centSubset solves the same problem over integer cents. rows[c-1][cents]
// holds the smallest group reaching cents with exactly c candidates, or at
// least minSize for the last row. Each candidate walks the table from high
// cents to low so it is used at most once. The winning group is re-checked
// against the exact decimal amounts. ok is false when the table would exceed
// maxCentCells.
func centSubset(amounts []decimal.Decimal, target, tolerance decimal.Decimal, minSize int) (picked []int, ok bool) {
	if minSize < 1 {
		minSize = 1
	}
	targetCents := toCents(target)
	tolCents := toCents(tolerance)
	limit := targetCents + tolCents
	if limit <= 0 {
		return nil, true
	}
	if (limit+1)*int64(minSize) > maxCentCells {
		return nil, false
	}

	rows := make([][]int32, minSize)
	for c := range rows {
		rows[c] = make([]int32, limit+1)
	}
	nodes := []centNode{{idx: -1}}

	// reach is the highest cents any group can have so far; cells above it
	// are empty and need no visit.
	var reach int64
	for i, a := range amounts {
		v := toCents(a)
		if v <= 0 || v > limit {
			continue
		}
		top := reach + v
		if top > limit {
			top = limit
		}
		for cents := top; cents >= v; cents-- {
			from := cents - v
			for c := minSize; c >= 1; c-- {
				src := int32(-1)
				switch {
				case c == 1 && from == 0:
					src = 0
				case c == 1:
					if minSize == 1 && rows[0][from] != 0 {
						src = rows[0][from]
					}
				default:
					if below := rows[c-2][from]; below != 0 {
						src = below
					}
					if c == minSize {
						if same := rows[c-1][from]; same != 0 && (src < 0 || nodes[same].size < nodes[src].size) {
							src = same
						}
					}
				}
				if src < 0 {
					continue
				}
				size := nodes[src].size + 1
				if cur := rows[c-1][cents]; cur != 0 && nodes[cur].size <= size {
					continue
				}
				nodes = append(nodes, centNode{idx: int32(i), size: size, prev: src})
				rows[c-1][cents] = int32(len(nodes) - 1)
			}
		}
		reach = top
	}

	final := rows[minSize-1]
	var best int32
	var bestGap int64
	low := targetCents - tolCents
	if low < 0 {
		low = 0
	}
	for cents := low; cents <= limit; cents++ {
		n := final[cents]
		if n == 0 {
			continue
		}
		gap := cents - targetCents
		if gap < 0 {
			gap = -gap
		}
		if best == 0 || nodes[n].size < nodes[best].size || (nodes[n].size == nodes[best].size && gap < bestGap) {
			best, bestGap = n, gap
		}
	}
	if best == 0 {
		return nil, true
	}

	picked = make([]int, nodes[best].size)
	for n, i := best, len(picked)-1; n != 0; n, i = nodes[n].prev, i-1 {
		picked[i] = int(nodes[n].idx)
	}

	sum := decimal.Zero
	for _, idx := range picked {
		sum = sum.Add(amounts[idx])
	}
	if !withinTolerance(sum, target, tolerance) {
		return nil, true
	}
	return picked, true
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
