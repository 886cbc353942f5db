// internal/game/moves.go
//
// Move resolution: which destinations are legal for a roll, and the
// side effects of applying a chosen move (displacement, free turn,
// finishing and scoring).
//
// Movement rules:
//   - A roll of 0 is never a move for any piece.
//   - Movement is strictly forward along the owner's path; an
//     off-board piece enters at path index roll-1.
//   - A piece finishes only by landing exactly on GoalIndex;
//     overshooting is illegal (no partial moves).
//   - A tile occupied by an own piece is blocked.
//   - An opponent piece can only be met on shared tiles. On a rosetta
//     it is protected and blocks the move; anywhere else it is
//     displaced back off-board.
//   - Landing on any rosetta grants a free turn.

package game

// legalDestination returns the destination path index for moving p by
// roll, or ok=false when no legal move exists for that piece.
// GoalIndex as a destination means the piece finishes. The choice
// between several legal pieces belongs to the caller; this only
// validates one candidate.
func (g *Game) legalDestination(p *Piece, roll int) (dest int, ok bool) {
	if roll <= 0 || p.Finished() {
		return 0, false
	}
	if p.Pos == OffBoard {
		dest = roll - 1
	} else {
		dest = p.Pos + roll
	}
	if dest > GoalIndex {
		return 0, false // overshoot: exact landing required
	}
	if dest == GoalIndex {
		return dest, true
	}
	occ := g.occupant(Cell(p.Owner, dest))
	switch {
	case occ == nil:
		return dest, true
	case occ.Owner == p.Owner:
		return 0, false // own piece blocks
	case TileAt(p.Owner, dest) == TileRosetta:
		return 0, false // opponent protected on a rosetta
	default:
		return dest, true // displacement
	}
}

// legalMovesFor enumerates all legal moves for a player and roll.
func (g *Game) legalMovesFor(player PlayerID, roll int) []Move {
	moves := []Move{}
	for i := range g.pieces {
		p := &g.pieces[i]
		if p.Owner != player {
			continue
		}
		if dest, ok := g.legalDestination(p, roll); ok {
			moves = append(moves, Move{Piece: p.ID, From: p.Pos, To: dest})
		}
	}
	return moves
}

// applyMove moves p to dest and resolves all side effects. dest must
// come from legalDestination; applyMove itself does not re-validate.
func (g *Game) applyMove(p *Piece, dest int) MoveOutcome {
	out := MoveOutcome{Piece: p.ID, From: p.Pos, To: dest}

	if dest == GoalIndex {
		p.Pos = GoalIndex
		out.Finished = true
		g.movesPlayed++
		return out
	}

	if occ := g.occupant(Cell(p.Owner, dest)); occ != nil {
		// Legality guarantees this is an opponent on a shared,
		// non-rosetta tile.
		occ.Pos = OffBoard
		id := occ.ID
		out.Displaced = &id
	}
	p.Pos = dest
	out.FreeTurn = TileAt(p.Owner, dest) == TileRosetta
	g.movesPlayed++
	return out
}
