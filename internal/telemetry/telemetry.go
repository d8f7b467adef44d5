// Package telemetry keeps statistics about the searches an engine has
// answered: how many, how fast, which terms recur and which queries found
// nothing. Everything stays in process memory.
package telemetry

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tunebook/tunebook/internal/store"
)

// LatencyBucket is a search latency histogram bucket.
type LatencyBucket string

const (
	BucketUnder1ms   LatencyBucket = "<1ms"
	BucketUnder5ms   LatencyBucket = "<5ms"
	BucketUnder20ms  LatencyBucket = "<20ms"
	BucketUnder100ms LatencyBucket = "<100ms"
	BucketSlow       LatencyBucket = ">=100ms"
)

// LatencyBuckets lists the buckets from fastest to slowest.
var LatencyBuckets = []LatencyBucket{
	BucketUnder1ms, BucketUnder5ms, BucketUnder20ms, BucketUnder100ms, BucketSlow,
}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketUnder1ms
	case d < 5*time.Millisecond:
		return BucketUnder5ms
	case d < 20*time.Millisecond:
		return BucketUnder20ms
	case d < 100*time.Millisecond:
		return BucketUnder100ms
	default:
		return BucketSlow
	}
}

// SearchEvent is one answered search.
type SearchEvent struct {
	Query    string
	Filtered bool
	Results  int
	Latency  time.Duration
}

// Ring is a fixed-capacity FIFO buffer.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int
	size  int
}

// NewRing creates a ring holding at most capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Add appends item, evicting the oldest when full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// Items returns the items oldest first. Never nil.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, r.size)
	if r.size < len(r.items) {
		return append(out, r.items[:r.size]...)
	}
	out = append(out, r.items[r.head:]...)
	return append(out, r.items[:r.head]...)
}

// Len returns the number of items held.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Terms splits a query into the folded tokens the fuzzy index sees,
// keeping those of at least three letters.
func Terms(query string) []string {
	return store.Terms(query, 3)
}

// TermCount is a search term and how often it was used.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a copy of the statistics at a point in time.
type Snapshot struct {
	Searches     int64                   `json:"searches"`
	ZeroResults  int64                   `json:"zeroResults"`
	Filtered     int64                   `json:"filtered"`
	Repeats      int64                   `json:"repeats"`
	TopTerms     []TermCount             `json:"topTerms"`
	RecentMisses []string                `json:"recentMisses"` // newest first
	Latency      map[LatencyBucket]int64 `json:"latency"`
	Since        time.Time               `json:"since"`
}

// ZeroResultRate is the fraction of searches that found nothing.
func (s *Snapshot) ZeroResultRate() float64 {
	if s == nil || s.Searches == 0 {
		return 0
	}
	return float64(s.ZeroResults) / float64(s.Searches)
}

// Config sizes a Recorder.
type Config struct {
	// TermCapacity bounds the distinct terms counted; the least recently
	// used term is forgotten first.
	TermCapacity int
	// MissCapacity bounds the zero-result queries kept.
	MissCapacity int
	// RecentCapacity bounds the queries remembered for repeat detection.
	RecentCapacity int
	// TopN is the number of terms reported in a snapshot.
	TopN int
}

// DefaultConfig returns the default sizes.
func DefaultConfig() Config {
	return Config{
		TermCapacity:   500,
		MissCapacity:   20,
		RecentCapacity: 500,
		TopN:           10,
	}
}

// Recorder accumulates search statistics. Safe for concurrent use; a nil
// Recorder ignores events.
type Recorder struct {
	mu          sync.Mutex
	cfg         Config
	terms       *lru.Cache[string, int64]
	recent      *lru.Cache[string, struct{}]
	misses      *Ring[string]
	latency     map[LatencyBucket]int64
	searches    int64
	zeroResults int64
	filtered    int64
	repeats     int64
	since       time.Time
}

// NewRecorder creates a Recorder. Non-positive sizes take their defaults.
func NewRecorder(cfg Config) *Recorder {
	def := DefaultConfig()
	if cfg.TermCapacity <= 0 {
		cfg.TermCapacity = def.TermCapacity
	}
	if cfg.MissCapacity <= 0 {
		cfg.MissCapacity = def.MissCapacity
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = def.RecentCapacity
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}

	terms, _ := lru.New[string, int64](cfg.TermCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentCapacity)
	return &Recorder{
		cfg:     cfg,
		terms:   terms,
		recent:  recent,
		misses:  NewRing[string](cfg.MissCapacity),
		latency: make(map[LatencyBucket]int64),
		since:   time.Now(),
	}
}

// Record adds one search.
func (r *Recorder) Record(e SearchEvent) {
	if r == nil {
		return
	}
	key := strings.Join(strings.Fields(strings.ToLower(e.Query)), " ")

	r.mu.Lock()
	defer r.mu.Unlock()

	r.searches++
	if e.Filtered {
		r.filtered++
	}
	if e.Results == 0 {
		r.zeroResults++
		r.misses.Add(e.Query)
	}
	r.latency[LatencyToBucket(e.Latency)]++

	for _, term := range Terms(e.Query) {
		n, _ := r.terms.Get(term)
		r.terms.Add(term, n+1)
	}

	if _, seen := r.recent.Get(key); seen {
		r.repeats++
	}
	r.recent.Add(key, struct{}{})
}

// Snapshot copies the current statistics. Nil for a nil Recorder.
func (r *Recorder) Snapshot() *Snapshot {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	top := make([]TermCount, 0, r.terms.Len())
	for _, term := range r.terms.Keys() {
		if n, ok := r.terms.Peek(term); ok {
			top = append(top, TermCount{Term: term, Count: n})
		}
	}
	slices.SortFunc(top, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if len(top) > r.cfg.TopN {
		top = top[:r.cfg.TopN]
	}

	latency := make(map[LatencyBucket]int64, len(r.latency))
	for k, v := range r.latency {
		latency[k] = v
	}

	misses := r.misses.Items()
	slices.Reverse(misses)

	return &Snapshot{
		Searches:     r.searches,
		ZeroResults:  r.zeroResults,
		Filtered:     r.filtered,
		Repeats:      r.repeats,
		TopTerms:     top,
		RecentMisses: misses,
		Latency:      latency,
		Since:        r.since,
	}
}
