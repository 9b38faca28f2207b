package book

import "github.com/marketlab/bookkeeper/internal/domain"

// DefaultHistoryCap bounds a book's best-price history when no capacity is
// configured. The source system appended forever; a ring with oldest-eviction
// replaces that.
const DefaultHistoryCap = 4096

// sampleRing is a fixed-capacity ring buffer of best-price samples. Oldest
// samples are evicted once the ring is full. Not safe for concurrent use;
// the owning OrderBook serializes access.
type sampleRing struct {
	buf   []domain.BestSample
	start int
	n     int
}

func newSampleRing(capacity int) *sampleRing {
	if capacity <= 0 {
		capacity = DefaultHistoryCap
	}
	return &sampleRing{buf: make([]domain.BestSample, capacity)}
}

func (r *sampleRing) append(s domain.BestSample) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = s
		r.n++
		return
	}
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

// list returns the retained samples oldest-first.
func (r *sampleRing) list() []domain.BestSample {
	out := make([]domain.BestSample, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

func (r *sampleRing) len() int { return r.n }
