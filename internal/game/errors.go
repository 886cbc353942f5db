// internal/game/errors.go
package game

import "errors"

var (
	// ErrInvalidState means the action is not permitted in the current
	// phase (e.g. rolling while a move is pending). The game state is
	// unchanged; callers should re-query the phase and retry.
	ErrInvalidState = errors.New("invalid state for action")

	// ErrIllegalMove means the selected piece has no legal destination
	// for the pending roll. The game state is unchanged; callers should
	// re-query LegalMoves.
	ErrIllegalMove = errors.New("illegal move")

	// ErrUnknownPiece means the piece ID is out of range.
	ErrUnknownPiece = errors.New("unknown piece")
)
