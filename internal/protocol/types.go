// Package protocol implements the legacy binary wire protocol: the framed,
// checksummed, XOR-keyed message envelope, the hi/hello key negotiation, and
// the message type and game code tables shared with the modern text adapter.
package protocol

import "fmt"

// Phase selects the application-header signature. A session starts in the
// proxy/lobby phase and moves to the game phase once seated in a match.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseGame
)

// Application-header signatures per phase.
const (
	SigLobby uint32 = 0x4C4F4259 // "LOBY"
	SigGame  uint32 = 0x47414D45 // "GAME"
)

func (p Phase) signature() uint32 {
	if p == PhaseGame {
		return SigGame
	}
	return SigLobby
}

// Shared session-management message types (0–39). These are valid in every
// game channel and in the lobby phase.
const (
	MsgKeepAlive    uint32 = 1
	MsgClientConfig uint32 = 2
	MsgServerStatus uint32 = 3
	MsgGameStart    uint32 = 4
	MsgChatToggle   uint32 = 5
	MsgRosterUpdate uint32 = 6
	MsgJoinLobby    uint32 = 7
)

// Per-game message types (256+). The concrete meaning of Move and the
// card-game types is owned by the game variants.
const (
	MsgGameCheckIn      uint32 = 256
	MsgGameMove         uint32 = 257
	MsgGameChat         uint32 = 258
	MsgGameEndGame      uint32 = 259
	MsgGameEndMatch     uint32 = 260
	MsgGameDrawVote     uint32 = 261
	MsgGameResign       uint32 = 262
	MsgGameDouble       uint32 = 263
	MsgGameBid          uint32 = 264
	MsgGamePassCards    uint32 = 265
	MsgGamePlayCard     uint32 = 266
	MsgGameHand         uint32 = 267
	MsgGameTrickResult  uint32 = 268
	MsgGameScore        uint32 = 269
	MsgGameNextGameVote uint32 = 270
	MsgGameTurn         uint32 = 271
)

// Chat id validation for the numeric "/<id>" convention: a common range
// shared by every game plus a per-game custom sub-range.
const (
	ChatCommonLo = 1
	ChatCommonHi = 50
	ChatCustomLo = 51
)

var chatCustomCounts = [NumGameTypes]uint32{20, 15, 15, 25, 25}

// ValidChatID reports whether id is a known canned-chat line for the game.
func ValidChatID(g GameType, id uint32) bool {
	if id >= ChatCommonLo && id <= ChatCommonHi {
		return true
	}
	if g < 0 || int(g) >= NumGameTypes {
		return false
	}
	return id >= ChatCustomLo && id < ChatCustomLo+chatCustomCounts[g]
}

// GameType identifies one of the five served games.
type GameType int

const (
	GameBackgammon GameType = iota
	GameCheckers
	GameReversi
	GameSpades
	GameHearts

	NumGameTypes = 5
)

var gameCodes = map[string]GameType{
	"bckg": GameBackgammon,
	"chkr": GameCheckers,
	"rvsi": GameReversi,
	"spds": GameSpades,
	"hrts": GameHearts,
}

var gameNames = [NumGameTypes]string{"backgammon", "checkers", "reversi", "spades", "hearts"}

// ParseGameCode maps a 4-character matchmaking game code to its GameType.
func ParseGameCode(code string) (GameType, error) {
	gt, ok := gameCodes[code]
	if !ok {
		return 0, fmt.Errorf("protocol: unknown game code %q", code)
	}
	return gt, nil
}

// Code returns the 4-character wire code for the game type.
func (g GameType) Code() string {
	for code, gt := range gameCodes {
		if gt == g {
			return code
		}
	}
	return "????"
}

func (g GameType) String() string {
	if g < 0 || int(g) >= NumGameTypes {
		return "unknown"
	}
	return gameNames[g]
}

// RequiredPlayers returns the seat count for a match of this game type.
func (g GameType) RequiredPlayers() int {
	switch g {
	case GameSpades, GameHearts:
		return 4
	default:
		return 2
	}
}
