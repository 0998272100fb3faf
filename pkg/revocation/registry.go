// Package revocation tracks a per-principal token version. Every token embeds
// the version current at issuance; bumping the version invalidates all
// tokens issued before the bump.
package revocation

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

// InitialVersion is the version every principal starts at.
const InitialVersion uint64 = 1

const shardCount = 64

// ErrTokenOutdated reports a token whose version no longer matches the
// registry.
var ErrTokenOutdated = errors.New("revocation: token is outdated")

// Versions is the narrow view token issuance and validation depend on.
type Versions interface {
	GetVersion(ctx context.Context, principal string) string
	IncrementVersion(ctx context.Context, principal string)
}

// Journal persists versions after they change. Implementations must keep the
// stored value monotonic since writes can arrive out of order.
type Journal interface {
	SaveVersion(ctx context.Context, principal string, version uint64) error
}

type shard struct {
	mu       sync.Mutex
	versions map[string]uint64
}

// Registry is a concurrent in-memory version table, optionally backed by a
// Journal. It is safe for use by many goroutines without external locking.
type Registry struct {
	shards  [shardCount]*shard
	journal Journal

	dirtyMu sync.Mutex
	dirty   map[string]struct{}
}

type Option func(*Registry)

// WithJournal writes every increment through to j.
func WithJournal(j Journal) Option {
	return func(r *Registry) { r.journal = j }
}

func New(opts ...Option) *Registry {
	r := &Registry{dirty: make(map[string]struct{})}
	for i := range r.shards {
		r.shards[i] = &shard{versions: make(map[string]uint64)}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) shardFor(principal string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principal))
	return r.shards[h.Sum32()%shardCount]
}

// GetVersion returns the principal's current version, initialising it to
// "1" on first sight.
func (r *Registry) GetVersion(_ context.Context, principal string) string {
	s := r.shardFor(principal)

	s.mu.Lock()
	v, ok := s.versions[principal]
	if !ok {
		v = InitialVersion
		s.versions[principal] = v
	}
	s.mu.Unlock()

	return strconv.FormatUint(v, 10)
}

// IncrementVersion atomically bumps the principal's version by one. An unseen
// principal is treated as being at InitialVersion, so its first increment
// yields 2.
func (r *Registry) IncrementVersion(ctx context.Context, principal string) {
	s := r.shardFor(principal)

	s.mu.Lock()
	v, ok := s.versions[principal]
	if !ok {
		v = InitialVersion
	}
	v++
	s.versions[principal] = v
	s.mu.Unlock()

	r.persist(ctx, principal, v)
}

func (r *Registry) persist(ctx context.Context, principal string, version uint64) {
	if r.journal == nil {
		return
	}

	// The caller may go away once the increment is visible; the write must not.
	if err := r.journal.SaveVersion(context.WithoutCancel(ctx), principal, version); err != nil {
		r.markDirty(principal)
		slogx.FromContext(ctx).Error("failed to persist token version",
			"principal", principal,
			"version", version,
			"err", err,
		)
	}
}

func (r *Registry) markDirty(principal string) {
	r.dirtyMu.Lock()
	r.dirty[principal] = struct{}{}
	r.dirtyMu.Unlock()
}

// Dirty reports how many principals have versions the journal has not yet
// accepted.
func (r *Registry) Dirty() int {
	r.dirtyMu.Lock()
	defer r.dirtyMu.Unlock()
	return len(r.dirty)
}

// Flush retries journal writes that previously failed. Principals that still
// fail stay dirty; the joined error describes them.
func (r *Registry) Flush(ctx context.Context) error {
	if r.journal == nil {
		return nil
	}

	r.dirtyMu.Lock()
	pending := make([]string, 0, len(r.dirty))
	for p := range r.dirty {
		pending = append(pending, p)
	}
	r.dirty = make(map[string]struct{})
	r.dirtyMu.Unlock()

	var errs []error
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			r.markDirty(p)
			errs = append(errs, err)
			continue
		}

		s := r.shardFor(p)
		s.mu.Lock()
		v := s.versions[p]
		s.mu.Unlock()

		if err := r.journal.SaveVersion(ctx, p, v); err != nil {
			r.markDirty(p)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Restore seeds the registry from persisted versions. Values only move
// forward: an in-memory version higher than the stored one is kept.
func (r *Registry) Restore(versions map[string]uint64) {
	for p, v := range versions {
		s := r.shardFor(p)
		s.mu.Lock()
		if cur, ok := s.versions[p]; !ok || v > cur {
			s.versions[p] = v
		}
		s.mu.Unlock()
	}
}

// Len returns the number of principals currently tracked.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.Lock()
		n += len(s.versions)
		s.mu.Unlock()
	}
	return n
}

// Check compares a token's version claim against the registry.
func Check(ctx context.Context, v Versions, principal, version string) error {
	if v.GetVersion(ctx, principal) != version {
		return ErrTokenOutdated
	}
	return nil
}
