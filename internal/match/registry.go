package match

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// VariantFactory builds a fresh game variant for a new match, or nil when
// the game type is not served. The supplied random source is the match's
// own; variants must not share it across matches.
type VariantFactory func(gt protocol.GameType, rng *rand.Rand) Variant

// ErrNoVariant is returned by FindLobby when the factory does not serve the
// requested game type.
var ErrNoVariant = errors.New("match: no variant for game type")

// Registry owns all live matches, partitioned by game type. Lookup, creation
// and sweep initiation share one registry-wide lock so lobby creation cannot
// race an update pass; per-match message processing uses the match's own
// finer-grained lock, so concurrent matches never block each other.
type Registry struct {
	mu      sync.Mutex
	matches map[protocol.GameType][]*Match

	factory VariantFactory
	rng     *rand.Rand
	log     *logrus.Logger
	rec     Recorder
}

// NewRegistry creates an empty registry. The random source seeds each match's
// own source; pass a fixed-seed source for deterministic tests.
func NewRegistry(factory VariantFactory, rng *rand.Rand, log *logrus.Logger, rec Recorder) *Registry {
	return &Registry{
		matches: make(map[protocol.GameType][]*Match),
		factory: factory,
		rng:     rng,
		log:     log,
		rec:     rec,
	}
}

// FindLobby joins the player into the first WaitingForPlayers match of the
// game type with room, creating and seeding a new match when none exists.
// The declared skill level only annotates a newly created match.
func (r *Registry) FindLobby(gt protocol.GameType, name string, skill int, msgr Messenger) (*Match, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.matches[gt] {
		if m.State() != WaitingForPlayers {
			continue
		}
		rosterID, err := m.Join(name, msgr)
		if err == nil {
			return m, rosterID, nil
		}
		// Full or no longer joinable; keep scanning.
	}

	v := r.factory(gt, r.newMatchRand())
	if v == nil {
		return nil, 0, ErrNoVariant
	}
	m := New(gt, v, skill, r.newMatchRand(), r.log, r.rec)
	r.matches[gt] = append(r.matches[gt], m)
	rosterID, err := m.Join(name, msgr)
	if err != nil {
		return nil, 0, err
	}
	r.log.WithField("match", m.ID).WithField("game", gt.String()).Info("created lobby")
	return m, rosterID, nil
}

// UpdateAll sweeps every match of every type once, evicting matches that have
// reached Ended. Eviction happens on the sweep that observes the terminal
// state; an evicted match is never updated again.
func (r *Registry) UpdateAll(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for gt, pool := range r.matches {
		kept := pool[:0]
		for _, m := range pool {
			if m.State() == Ended {
				continue
			}
			m.Update(now)
			if m.State() != Ended {
				kept = append(kept, m)
			}
		}
		r.matches[gt] = kept
	}
}

// Run drives the periodic update sweep until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.UpdateAll(now)
		}
	}
}

// MatchCount returns the number of live matches of the given type.
func (r *Registry) MatchCount(gt protocol.GameType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches[gt])
}

// newMatchRand derives an independent random source for one match.
// Assumes registry lock is held.
func (r *Registry) newMatchRand() *rand.Rand {
	return rand.New(rand.NewSource(r.rng.Int63()))
}
