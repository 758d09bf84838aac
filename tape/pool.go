package tape

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/darach/fionn/internal/arena"
)

// PoolOptions configures a Pool (spec §6.1).
type PoolOptions struct {
	// MaxIdle caps the number of reset tapes kept ready for reuse.
	MaxIdle int
	// IdleTTL evicts a pooled tape that has sat unused longer than this.
	// Zero disables TTL eviction.
	IdleTTL time.Duration
	// Logger receives operational traces for get/put/evict; defaults to
	// a no-op logger.
	Logger *zap.Logger
}

type entry struct {
	id       uuid.UUID
	tape     *Tape
	lastUsed time.Time
}

// Pool recycles Tape instances (and their arenas) across parses so a
// high-throughput caller doesn't pay an allocation per document. Put
// gives each idle entry a fresh debug UUID, which the Get that reuses it
// logs, so log lines can be correlated without exposing pointer identity
// (spec §6.1). The UUID a Get miss logs is not kept with the new tape.
type Pool struct {
	mu      sync.Mutex
	idle    []*entry
	maxIdle int
	ttl     time.Duration
	log     *zap.Logger
}

// NewPool creates a Pool. A zero-value PoolOptions yields an unbounded,
// non-expiring pool with a no-op logger.
func NewPool(opts PoolOptions) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		maxIdle: opts.MaxIdle,
		ttl:     opts.IdleTTL,
		log:     logger,
	}
}

// Get returns an idle tape to reuse, or a freshly built one sized from
// inputLen if the pool is empty or every idle entry has expired.
func (p *Pool) Get(format string, inputLen int) *Tape {
	p.mu.Lock()
	now := time.Now()
	p.evictExpiredLocked(now)
	if n := len(p.idle); n > 0 {
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		p.log.Debug("tape pool hit", zap.String("id", e.id.String()))
		e.tape.Header.Format = format
		return e.tape
	}
	p.mu.Unlock()
	id := uuid.New()
	p.log.Debug("tape pool miss, allocating", zap.String("id", id.String()))
	b := NewBuilder(arena.New(inputLen), format, inputLen)
	return b.Build()
}

// Put resets t and returns it to the idle list, unless the pool is
// already at MaxIdle capacity (in which case t is simply dropped for the
// garbage collector).
func (p *Pool) Put(t *Tape) {
	t.Reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxIdle > 0 && len(p.idle) >= p.maxIdle {
		p.log.Debug("tape pool full, discarding")
		return
	}
	id := uuid.New()
	p.idle = append(p.idle, &entry{id: id, tape: t, lastUsed: time.Now()})
}

func (p *Pool) evictExpiredLocked(now time.Time) {
	if p.ttl <= 0 {
		return
	}
	kept := p.idle[:0]
	for _, e := range p.idle {
		if now.Sub(e.lastUsed) > p.ttl {
			p.log.Debug("tape pool evicting expired entry", zap.String("id", e.id.String()))
			continue
		}
		kept = append(kept, e)
	}
	p.idle = kept
}

// Idle reports the current number of idle tapes held by the pool.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
