package match

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// State is the match lifecycle state. It only advances forward; the per-game
// rematch sub-protocol resets game sub-state while the match stays Playing.
type State int

const (
	WaitingForPlayers State = iota
	PendingStart
	Playing
	GameOver
	Ended
)

var stateNames = [...]string{"waiting_for_players", "pending_start", "playing", "game_over", "ended"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[int(s)]
}

// GameOverGrace is how long a finished match lingers before auto-closing.
const GameOverGrace = 60 * time.Second

// Messenger delivers outbound messages to one player's connection. Send must
// never block: it is called while the match lock is held, so a slow peer has
// to be buffered or dropped, not waited on. Kick terminates the connection.
type Messenger interface {
	Send(msgType uint32, payload []byte)
	Kick()
}

// Recorder receives best-effort match history records. Implementations must
// not block.
type Recorder interface {
	Record(matchID uuid.UUID, event string, fields map[string]interface{})
}

// ErrMatchFull is returned by Join once the roster has reached capacity.
var ErrMatchFull = errors.New("match: roster full")

// ErrNotJoinable is returned by Join outside WaitingForPlayers.
var ErrNotJoinable = errors.New("match: not accepting players")

// player is one roster entry. Entries are never spliced out: roster ids held
// by connections stay valid for the match's lifetime, and a vacated entry is
// marked gone instead.
type player struct {
	name      string
	msgr      Messenger
	ready     bool
	gone      bool
	chatMuted bool
	seat      int // -1 until seats are assigned
}

// Match is one forming or in-progress game. All mutation is serialized
// through mu: exactly one inbound message (or lifecycle operation) is
// interpreted at a time, no matter which connection goroutine delivered it.
type Match struct {
	ID       uuid.UUID
	GameType protocol.GameType

	// Skill is the declared skill level of the first joining player. It is
	// informational only and never affects lobby placement.
	Skill int

	mu       sync.Mutex
	state    State
	roster   []*player
	required int
	variant  Variant
	rng      *rand.Rand
	log      *logrus.Entry
	rec      Recorder

	// gameOverAt is the auto-close deadline, armed by the first Update
	// that observes GameOver.
	gameOverAt time.Time
}

// New creates a match in WaitingForPlayers with an empty roster.
func New(gt protocol.GameType, v Variant, skill int, rng *rand.Rand, log *logrus.Logger, rec Recorder) *Match {
	id := uuid.New()
	m := &Match{
		ID:       id,
		GameType: gt,
		Skill:    skill,
		state:    WaitingForPlayers,
		required: v.RequiredPlayers(),
		variant:  v,
		rng:      rng,
		log:      log.WithField("match", id).WithField("game", gt.String()),
		rec:      rec,
	}
	m.record("match_created", map[string]interface{}{"skill": skill})
	return m
}

// State returns the current lifecycle state.
func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RosterSize returns the current number of seated players.
func (m *Match) RosterSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCount()
}

// RequiredPlayers returns the fixed seat capacity.
func (m *Match) RequiredPlayers() int { return m.required }

// Join appends a player to the roster. Permitted only in WaitingForPlayers.
// The returned roster id addresses the player until seats are assigned.
// Filling the last slot transitions the match to PendingStart.
func (m *Match) Join(name string, msgr Messenger) (rosterID int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != WaitingForPlayers {
		return 0, ErrNotJoinable
	}
	if m.activeCount() >= m.required {
		return 0, ErrMatchFull
	}
	m.roster = append(m.roster, &player{name: name, msgr: msgr, seat: -1})
	rosterID = len(m.roster) - 1

	if m.activeCount() == m.required {
		m.state = PendingStart
		m.log.Info("roster full, pending start")
	}
	m.broadcastRoster()
	m.record("player_join", map[string]interface{}{"name": name, "roster": m.activeCount()})
	return rosterID, nil
}

// HandleMessage interprets one inbound application message from the player
// with the given roster id. The lock is held for the whole interpretation and
// always released, success or failure. A Rejected or Fatal outcome leaves
// match state untouched.
func (m *Match) HandleMessage(rosterID int, msgType uint32, payload []byte) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rosterID < 0 || rosterID >= len(m.roster) || m.roster[rosterID].gone {
		return Fail("unknown player")
	}

	// Session-management message, valid in any post-join state.
	if msgType == protocol.MsgChatToggle {
		if len(payload) != 0 {
			return Fail("malformed chat toggle")
		}
		p := m.roster[rosterID]
		p.chatMuted = !p.chatMuted
		return Accept()
	}

	switch m.state {
	case PendingStart:
		return m.handlePendingStart(rosterID, msgType)
	case Playing, GameOver:
		p := m.roster[rosterID]
		if p.seat < 0 {
			return Fail("message before seat assignment")
		}
		out := m.variant.HandleMessage(p.seat, msgType, payload)
		if out.Verdict == VerdictAccepted {
			m.deliver(out.Events)
			m.record("game_event", map[string]interface{}{"seat": p.seat, "type": msgType})
			m.observeGameState()
		}
		return out
	default:
		return Reject("message in state " + m.state.String())
	}
}

// handlePendingStart accepts readiness check-ins while waiting to start.
// Assumes lock is held.
func (m *Match) handlePendingStart(rosterID int, msgType uint32) Outcome {
	if msgType != protocol.MsgGameCheckIn {
		return Reject("unexpected message before game start")
	}
	p := m.roster[rosterID]
	if p.ready {
		return Reject("duplicate check-in")
	}
	p.ready = true
	m.record("player_ready", map[string]interface{}{"roster": rosterID})
	return Accept()
}

// Disconnect vacates the player's roster slot and applies the cascade rules:
// an empty roster always ends the match; a disconnect once play is underway,
// or during GameOver when a rematch is no longer possible, forcibly
// disconnects everyone so no match lingers with players who cannot complete
// it.
func (m *Match) Disconnect(rosterID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rosterID < 0 || rosterID >= len(m.roster) || m.roster[rosterID].gone {
		return
	}
	if m.state == Ended {
		return
	}
	p := m.roster[rosterID]
	p.gone = true
	p.msgr = nil
	m.record("player_disconnect", map[string]interface{}{"name": p.name, "state": m.state.String()})

	if m.activeCount() == 0 {
		m.transitionEnded()
		return
	}

	switch m.state {
	case WaitingForPlayers:
		m.broadcastRoster()
	case PendingStart, Playing:
		m.log.WithField("player", p.name).Info("disconnect during play, disbanding")
		m.kickAll()
		m.transitionEnded()
	case GameOver:
		if m.activeCount() < m.required {
			m.kickAll()
			m.transitionEnded()
		}
	}
}

// Update drives time-based transitions. The registry invokes it roughly once
// per second.
func (m *Match) Update(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case PendingStart:
		for _, p := range m.roster {
			if !p.gone && !p.ready {
				return
			}
		}
		m.startGame()
	case Playing:
		m.observeGameState()
	case GameOver:
		if !m.variant.Finished() {
			// Revived by a rematch; cancel the grace timer.
			m.state = Playing
			m.gameOverAt = time.Time{}
			m.log.Info("match revived, back to playing")
			return
		}
		if m.gameOverAt.IsZero() {
			m.gameOverAt = now.Add(GameOverGrace)
			return
		}
		if now.After(m.gameOverAt) {
			m.kickAll()
			m.transitionEnded()
		}
	}
}

// startGame assigns a random, collision-free seat permutation over the
// roster, notifies every player, and transitions to Playing.
// Assumes lock is held.
func (m *Match) startGame() {
	active := make([]*player, 0, m.required)
	for _, p := range m.roster {
		if !p.gone {
			active = append(active, p)
		}
	}
	perm := m.rng.Perm(len(active))
	names := make([]string, len(active))
	for i, seat := range perm {
		active[i].seat = seat
		names[seat] = active[i].name
	}
	m.state = Playing
	m.log.Info("game start")
	m.record("game_start", map[string]interface{}{"players": names})

	for _, p := range active {
		p.msgr.Send(protocol.MsgGameStart, encodeGameStart(p.seat, names))
	}
	m.deliver(m.variant.Start(m.rng))
}

// observeGameState moves the match to GameOver once the variant reports the
// game concluded. The grace timer is armed by the next Update sweep.
// Assumes lock is held.
func (m *Match) observeGameState() {
	if m.state == Playing && m.variant.Finished() {
		m.state = GameOver
		m.gameOverAt = time.Time{}
		m.log.Info("game over")
		m.record("game_over", nil)
	}
}

// deliver routes events to their destination seats. Sends are non-blocking,
// so holding the lock here cannot stall on a slow peer.
// Assumes lock is held.
func (m *Match) deliver(events []Event) {
	for _, ev := range events {
		for _, p := range m.roster {
			if p.gone || p.msgr == nil {
				continue
			}
			if ev.Type == protocol.MsgGameChat && p.chatMuted {
				continue
			}
			if ev.Seat == AllSeats || ev.Seat == p.seat {
				p.msgr.Send(ev.Type, ev.Payload)
			}
		}
	}
}

// broadcastRoster announces the roster size to all current members.
// Assumes lock is held.
func (m *Match) broadcastRoster() {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:], uint32(m.activeCount()))
	binary.BigEndian.PutUint32(payload[4:], uint32(m.required))
	for _, p := range m.roster {
		if !p.gone && p.msgr != nil {
			p.msgr.Send(protocol.MsgRosterUpdate, payload)
		}
	}
}

// kickAll terminates every remaining connection.
// Assumes lock is held.
func (m *Match) kickAll() {
	for _, p := range m.roster {
		if p.msgr != nil {
			p.msgr.Kick()
			p.msgr = nil
			p.gone = true
		}
	}
}

// transitionEnded is the terminal transition; the registry evicts the match
// on its next sweep.
// Assumes lock is held.
func (m *Match) transitionEnded() {
	m.state = Ended
	m.log.Info("match ended")
	m.record("match_ended", nil)
}

// activeCount returns how many roster slots are still occupied.
// Assumes lock is held.
func (m *Match) activeCount() int {
	n := 0
	for _, p := range m.roster {
		if !p.gone {
			n++
		}
	}
	return n
}

// record publishes a best-effort history record.
func (m *Match) record(event string, fields map[string]interface{}) {
	if m.rec != nil {
		m.rec.Record(m.ID, event, fields)
	}
}

// encodeGameStart builds the MsgGameStart payload: the receiver's seat, the
// seat count, and the full roster names in seat order.
func encodeGameStart(seat int, names []string) []byte {
	size := 8
	for _, n := range names {
		size += 4 + len(n)
	}
	payload := make([]byte, 8, size)
	binary.BigEndian.PutUint32(payload[0:], uint32(seat))
	binary.BigEndian.PutUint32(payload[4:], uint32(len(names)))
	for _, n := range names {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(n)))
		payload = append(payload, lenBuf[:]...)
		payload = append(payload, n...)
	}
	return payload
}
