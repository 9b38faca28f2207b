// Package book implements the local order-book replication engine: per-asset
// two-sided ladders kept in sync with the venue's snapshot and delta feed,
// plus the registry and router that fan inbound events out to them.
package book

import (
	"math"
	"sort"

	"github.com/marketlab/bookkeeper/internal/domain"
)

// PriceTolerance is the bucket width for price identity. Two prices closer
// than this are the same level; upstream prices occasionally arrive with
// floating representation drift.
const PriceTolerance = 1e-4

// ladderKind selects which end of the price axis is "best".
type ladderKind int

const (
	bidLadder ladderKind = iota
	askLadder
)

// Ladder holds one side's resting levels for a single asset. It is not
// safe for concurrent use; the owning OrderBook serializes access.
type Ladder struct {
	kind   ladderKind
	levels []domain.PriceLevel
}

// NewBidLadder returns an empty ladder whose best level is the maximum price.
func NewBidLadder() *Ladder { return &Ladder{kind: bidLadder} }

// NewAskLadder returns an empty ladder whose best level is the minimum price.
func NewAskLadder() *Ladder { return &Ladder{kind: askLadder} }

func samePrice(a, b float64) bool {
	return math.Abs(a-b) < PriceTolerance
}

// Upsert replaces the size of the level matching price within tolerance,
// removes it when size is zero, or inserts a new level. A zero size for an
// unknown price is a no-op. After Upsert at most one level occupies the
// price bucket and no zero-size level remains.
func (l *Ladder) Upsert(price, size float64) {
	for i := range l.levels {
		if samePrice(l.levels[i].Price, price) {
			if size > 0 {
				l.levels[i].Size = size
			} else {
				l.levels = append(l.levels[:i], l.levels[i+1:]...)
			}
			return
		}
	}
	if size > 0 {
		l.levels = append(l.levels, domain.PriceLevel{Price: price, Size: size})
	}
}

// Best returns the most competitive level: maximum price for bids, minimum
// for asks. The second return is false when the ladder is empty.
func (l *Ladder) Best() (domain.PriceLevel, bool) {
	if len(l.levels) == 0 {
		return domain.PriceLevel{}, false
	}
	best := l.levels[0]
	for _, lvl := range l.levels[1:] {
		if l.better(lvl.Price, best.Price) {
			best = lvl
		}
	}
	return best, true
}

func (l *Ladder) better(a, b float64) bool {
	if l.kind == bidLadder {
		return a > b
	}
	return a < b
}

// SizeAt returns the resting size at the level matching price within
// tolerance. The second return is false when no level matches.
func (l *Ladder) SizeAt(price float64) (float64, bool) {
	for _, lvl := range l.levels {
		if samePrice(lvl.Price, price) {
			return lvl.Size, true
		}
	}
	return 0, false
}

// TotalSizeAt sums the sizes of all levels within tolerance of price.
// With Upsert's merge invariant holding there is at most one, but the sum is
// kept for liquidity queries against snapshot-loaded books.
func (l *Ladder) TotalSizeAt(price float64) float64 {
	var total float64
	for _, lvl := range l.levels {
		if samePrice(lvl.Price, price) {
			total += lvl.Size
		}
	}
	return total
}

// TopN returns up to n levels ordered best to worst. n <= 0 yields nil;
// n larger than the ladder returns every level.
func (l *Ladder) TopN(n int) []domain.PriceLevel {
	if n <= 0 || len(l.levels) == 0 {
		return nil
	}
	sorted := make([]domain.PriceLevel, len(l.levels))
	copy(sorted, l.levels)
	sort.Slice(sorted, func(i, j int) bool {
		return l.better(sorted[i].Price, sorted[j].Price)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// AggregateSize sums every level's size.
func (l *Ladder) AggregateSize() float64 {
	var total float64
	for _, lvl := range l.levels {
		total += lvl.Size
	}
	return total
}

// Len returns the number of resting levels.
func (l *Ladder) Len() int { return len(l.levels) }

// replaceAll swaps in a snapshot's levels, enforcing the ladder invariants:
// zero-size entries are dropped and duplicate price buckets collapse to the
// last occurrence.
func (l *Ladder) replaceAll(levels []domain.PriceLevel) {
	l.levels = l.levels[:0]
	for _, lvl := range levels {
		l.Upsert(lvl.Price, lvl.Size)
	}
}
