// internal/game/engine.go
//
// Game engine for a single Ur match between two local players.
// Responsibilities:
//   - Own the full game aggregate: pieces, scores, turn state, dice.
//   - Drive the turn state machine: roll -> move-or-pass -> next turn.
//   - Expose guarded entry points (RollDice/SelectPiece/EndTurn/Reset);
//     every call either completes fully or leaves state untouched.
//   - Produce serializable snapshots for external layers.
//
// The engine is single-threaded and non-reentrant by contract: callers
// invoke entry points serially. Multiple concurrent matches use
// independent Game instances.
package game

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Game holds the state of a single match.
type Game struct {
	ID string // unique match identifier (random hex string)

	pieces      [totalPieces]Piece
	current     PlayerID
	pendingRoll int // -1 when awaiting a roll
	phase       Phase
	winner      PlayerID
	hasWinner   bool
	movesPlayed int

	dice Roller
}

// New constructs a new match. A non-zero seed makes the dice sequence
// deterministic (testing, replays); seed 0 seeds from the clock.
func New(seed int64) *Game {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Game{
		ID:   randomID(),
		dice: NewRoller(seed),
	}
	g.Reset()
	return g
}

// NewWithRoller constructs a match using a caller-supplied dice
// source. Useful for scripted or externally-seeded play.
func NewWithRoller(r Roller) *Game {
	g := &Game{ID: randomID(), dice: r}
	g.Reset()
	return g
}

// Reset clears the match back to its starting state: all pieces
// off-board, scores zero, player one to roll. The dice roller is kept
// so a seeded game stays deterministic across resets.
func (g *Game) Reset() {
	for i := range g.pieces {
		g.pieces[i] = Piece{
			ID:    PieceID(i),
			Owner: PlayerID(i / PiecesPerPlayer),
			Pos:   OffBoard,
		}
	}
	g.current = P1
	g.pendingRoll = -1
	g.phase = PhaseAwaitRoll
	g.hasWinner = false
	g.winner = P1
	g.movesPlayed = 0
}

// CurrentPlayer returns the seat whose turn it is.
func (g *Game) CurrentPlayer() PlayerID { return g.current }

// Phase returns the current turn phase.
func (g *Game) Phase() Phase { return g.phase }

// CurrentRoll returns the pending roll, if one is awaiting a move or
// an end-turn acknowledgement.
func (g *Game) CurrentRoll() (int, bool) {
	if g.pendingRoll < 0 {
		return 0, false
	}
	return g.pendingRoll, true
}

// Winner returns the winning seat once the game is over.
func (g *Game) Winner() (PlayerID, bool) { return g.winner, g.hasWinner }

// Score returns the number of finished pieces for a seat.
func (g *Game) Score(player PlayerID) int {
	n := 0
	for i := range g.pieces {
		if g.pieces[i].Owner == player && g.pieces[i].Finished() {
			n++
		}
	}
	return n
}

// MovesPlayed returns the number of applied moves this game.
func (g *Game) MovesPlayed() int { return g.movesPlayed }

// LegalMoves enumerates the current player's legal moves for the
// pending roll. Empty when no roll is pending or no move exists.
func (g *Game) LegalMoves() []Move {
	if g.pendingRoll < 0 || g.phase == PhaseGameOver {
		return []Move{}
	}
	return g.legalMovesFor(g.current, g.pendingRoll)
}

// RollDice rolls for the current player. If the roll is zero or no
// piece can move, the turn can only be ended; otherwise a move is
// awaited. Returns ErrInvalidState outside the rolling phase.
func (g *Game) RollDice() (int, error) {
	if g.phase != PhaseAwaitRoll {
		return 0, ErrInvalidState
	}
	roll := g.dice.Roll()
	g.pendingRoll = roll
	if roll == 0 || len(g.legalMovesFor(g.current, roll)) == 0 {
		g.phase = PhaseAwaitEndTurn
	} else {
		g.phase = PhaseAwaitMove
	}
	return roll, nil
}

// SelectPiece applies the pending roll to the chosen piece. On success
// the turn advances: the mover keeps the turn after a rosetta landing,
// otherwise play passes to the opponent. The win check runs after
// every applied move; the seventh finished piece ends the game.
func (g *Game) SelectPiece(id PieceID) (MoveOutcome, error) {
	if g.phase != PhaseAwaitMove {
		return MoveOutcome{}, ErrInvalidState
	}
	if id < 0 || int(id) >= totalPieces {
		return MoveOutcome{}, ErrUnknownPiece
	}
	p := &g.pieces[id]
	if p.Owner != g.current {
		return MoveOutcome{}, ErrIllegalMove
	}
	dest, ok := g.legalDestination(p, g.pendingRoll)
	if !ok {
		return MoveOutcome{}, ErrIllegalMove
	}

	out := g.applyMove(p, dest)
	g.pendingRoll = -1

	if g.Score(g.current) == PiecesPerPlayer {
		g.winner = g.current
		g.hasWinner = true
		g.phase = PhaseGameOver
		out.Won = true
		return out, nil
	}
	if !out.FreeTurn {
		g.current = g.current.Opponent()
	}
	g.phase = PhaseAwaitRoll
	return out, nil
}

// EndTurn passes play to the opponent after a dead roll. It is only
// valid while an end-turn acknowledgement is awaited; ending the turn
// while legal moves remain is rejected.
func (g *Game) EndTurn() error {
	if g.phase != PhaseAwaitEndTurn {
		return ErrInvalidState
	}
	g.pendingRoll = -1
	g.current = g.current.Opponent()
	g.phase = PhaseAwaitRoll
	return nil
}

// State produces a full snapshot for external layers.
func (g *Game) State() State {
	st := State{
		ID:            g.ID,
		Phase:         g.phase,
		CurrentPlayer: g.current,
		Scores:        [2]int{g.Score(P1), g.Score(P2)},
		LegalMoves:    g.LegalMoves(),
		MovesPlayed:   g.movesPlayed,
		Pieces:        make([]PieceState, 0, totalPieces),
	}
	if roll, ok := g.CurrentRoll(); ok {
		r := roll
		st.PendingRoll = &r
	}
	if w, ok := g.Winner(); ok {
		winner := w
		st.Winner = &winner
	}
	for i := range g.pieces {
		p := &g.pieces[i]
		ps := PieceState{
			ID:       p.ID,
			Owner:    p.Owner,
			Pos:      p.Pos,
			Cell:     -1,
			OnBoard:  p.OnBoard(),
			Finished: p.Finished(),
		}
		if p.OnBoard() {
			ps.Cell = Cell(p.Owner, p.Pos)
		}
		st.Pieces = append(st.Pieces, ps)
	}
	return st
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
