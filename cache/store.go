package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"stories-service/metrics"
)

const (
	DefaultMaxEntries    = 100
	DefaultSweepInterval = 30 * time.Second
	DefaultSweepBudget   = 20
)

// Entry is a stored response.
type Entry struct {
	Status      int
	ContentType string
	Payload     []byte
	ExpiresAt   time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

type Options struct {
	MaxEntries    int
	SweepInterval time.Duration
	SweepBudget   int
	Now           func() time.Time
	Logger        *slog.Logger
}

func (o *Options) setDefaults() {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.SweepBudget <= 0 {
		o.SweepBudget = DefaultSweepBudget
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Store is a bounded TTL cache of rendered responses. Entries are kept in
// insertion order: reads never reorder, and a full store drops the entry that
// was put least recently.
type Store struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, Entry]

	opts   Options
	logger *slog.Logger

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func New(opts Options) (*Store, error) {
	opts.setDefaults()

	entries, err := simplelru.NewLRU[string, Entry](opts.MaxEntries, nil)
	if err != nil {
		return nil, err
	}

	return &Store{
		entries: entries,
		opts:    opts,
		logger:  opts.Logger.With("component", "cache.Store"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Lookup returns the live entry for key. An expired entry is removed and
// reported as a miss.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Peek(key)
	if !ok {
		return Entry{}, false
	}
	if e.expired(s.opts.Now()) {
		s.entries.Remove(key)
		s.evicted("expired", 1)
		return Entry{}, false
	}
	return e, true
}

// Put stores e under key for ttl, replacing any previous entry.
func (s *Store) Put(key string, e Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.ExpiresAt = s.opts.Now().Add(ttl)
	if s.entries.Add(key, e) {
		s.evicted("capacity", 1)
	}
	metrics.CacheEntries.Set(float64(s.entries.Len()))
}

// Invalidate removes every key m accepts and returns how many were removed.
func (s *Store) Invalidate(m Matcher) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, key := range s.entries.Keys() {
		if m(key) && s.entries.Remove(key) {
			removed++
		}
	}
	s.evicted("invalidated", removed)
	return removed
}

// Flush drops all entries.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.entries.Len()
	s.entries.Purge()
	s.evicted("flushed", n)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Sweep examines up to SweepBudget of the oldest entries and removes the
// expired ones.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	keys := s.entries.Keys()
	if len(keys) > s.opts.SweepBudget {
		keys = keys[:s.opts.SweepBudget]
	}

	removed := 0
	for _, key := range keys {
		if e, ok := s.entries.Peek(key); ok && e.expired(now) {
			s.entries.Remove(key)
			removed++
		}
	}
	s.evicted("expired", removed)
	return removed
}

// Start runs the periodic sweep until ctx is done or Close is called.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(ctx)
	})
}

func (s *Store) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("swept expired entries", "removed", n)
			}
		}
	}
}

// Close stops the sweeper and waits for it to exit. It is safe to call more
// than once, and before Start.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.done
		}
	})
}

func (s *Store) evicted(reason string, n int) {
	if n == 0 {
		return
	}
	metrics.CacheEvictions.WithLabelValues(reason).Add(float64(n))
	metrics.CacheEntries.Set(float64(s.entries.Len()))
}
