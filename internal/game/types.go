// internal/game/types.go
//
// Core type definitions for the Ur game engine.
// Defines:
//   - PlayerID: the two seats (P1/P2).
//   - TileKind: what a board cell is (normal/rosetta/goal).
//   - Piece:    a single token with a fixed owner and a path position.
//   - Phase:    the turn state machine phases.
//   - Move / MoveOutcome: a candidate move and the effects of applying one.

package game

// PlayerID identifies one of the two seats.
type PlayerID int

const (
	P1 PlayerID = iota
	P2
)

// Opponent returns the other seat.
func (p PlayerID) Opponent() PlayerID {
	if p == P1 {
		return P2
	}
	return P1
}

func (p PlayerID) String() string {
	if p == P1 {
		return "p1"
	}
	return "p2"
}

// TileKind classifies a board cell.
type TileKind int

const (
	TileNone    TileKind = iota // cell outside either path (board cutout)
	TileNormal                  // plain tile
	TileRosetta                 // grants a free turn; occupants are safe
	TileGoal                    // landing here (exactly) finishes a piece
)

// Piece position sentinels. A piece's Pos is exactly one of:
// OffBoard, a path index in [0, PathLen), or GoalIndex (finished).
const (
	// OffBoard means the piece has not entered its path (or was displaced).
	OffBoard = -1
	// PathLen is the number of board tiles on each player's path.
	PathLen = 14
	// GoalIndex is one past the last path tile; reaching it exactly
	// finishes the piece. Finished pieces never re-enter the board.
	GoalIndex = PathLen
)

const (
	// PiecesPerPlayer is the traditional token count per seat.
	PiecesPerPlayer = 7
	totalPieces     = 2 * PiecesPerPlayer
)

// PieceID is a stable identifier for a token: 0..6 belong to P1,
// 7..13 to P2. External layers reference pieces only by this ID.
type PieceID int

// Piece is a single movable token. Ownership is fixed at creation;
// Pos is mutated only by the engine when a move is applied.
type Piece struct {
	ID    PieceID  `json:"id"`
	Owner PlayerID `json:"owner"`
	Pos   int      `json:"pos"` // OffBoard, 0..PathLen-1, or GoalIndex
}

// OnBoard reports whether the piece currently occupies a path tile.
func (p *Piece) OnBoard() bool { return p.Pos >= 0 && p.Pos < PathLen }

// Finished reports whether the piece has completed its path.
func (p *Piece) Finished() bool { return p.Pos == GoalIndex }

// Phase names a turn state. Exactly one action is valid per phase:
// roll in PhaseAwaitRoll, move in PhaseAwaitMove, end-turn in
// PhaseAwaitEndTurn. PhaseGameOver only accepts a reset.
type Phase string

const (
	PhaseAwaitRoll    Phase = "awaiting_roll"
	PhaseAwaitMove    Phase = "awaiting_move"
	PhaseAwaitEndTurn Phase = "awaiting_end_turn"
	PhaseGameOver     Phase = "game_over"
)

// Move is one legal (piece, destination) option for the pending roll.
// To == GoalIndex means the move finishes the piece.
type Move struct {
	Piece PieceID `json:"piece"`
	From  int     `json:"from"`
	To    int     `json:"to"`
}

// MoveOutcome describes the effects of an applied move.
type MoveOutcome struct {
	Piece     PieceID  `json:"piece"`
	From      int      `json:"from"`
	To        int      `json:"to"`
	Finished  bool     `json:"finished"`            // piece reached the goal
	Displaced *PieceID `json:"displaced,omitempty"` // opponent piece sent off-board
	FreeTurn  bool     `json:"freeTurn"`            // landed on a rosetta
	Won       bool     `json:"won"`                 // this move won the game
}

// PieceState is a serializable representation of a Piece for external
// layers. Cell is the board grid cell the piece stands on, or -1 when
// the piece is off-board or finished.
type PieceState struct {
	ID       PieceID  `json:"id"`
	Owner    PlayerID `json:"owner"`
	Pos      int      `json:"pos"`
	Cell     int      `json:"cell"`
	OnBoard  bool     `json:"onBoard"`
	Finished bool     `json:"finished"`
}

// State is a full serializable snapshot of a game. External layers
// render from this and never mutate engine internals directly.
type State struct {
	ID            string       `json:"id"`
	Phase         Phase        `json:"phase"`
	CurrentPlayer PlayerID     `json:"currentPlayer"`
	PendingRoll   *int         `json:"pendingRoll,omitempty"`
	Pieces        []PieceState `json:"pieces"`
	Scores        [2]int       `json:"scores"`
	LegalMoves    []Move       `json:"legalMoves"`
	Winner        *PlayerID    `json:"winner,omitempty"`
	MovesPlayed   int          `json:"movesPlayed"`
}
