// internal/game/board.go
//
// Static board topology: the 3x8 grid, the two player paths across it,
// and the tile-kind queries the move resolver needs.

package game

// The board is a 3x8 grid of 24 cells, indexed row-major with three
// cells per row. Two corner cells are cut out of the board; the two
// goal cells sit in the cutout row ends.
//
//	 0  1  2      R  .  R
//	 3  4  5      .  .  .
//	 6  7  8      .  .  .
//	 9 10 11      .  R  .
//	12 13 14         .        (12 and 14 are cutouts)
//	15 16 17      G  .  G
//	18 19 20      R  .  R
//	21 22 23      .  .  .
//
// The middle column (cell%3 == 1) is traversed by both players and is
// the only contested space; the outer columns are private to one seat.
const gridCells = 24

// cellKinds maps grid cell -> tile kind. Five rosettas total: one on
// each player's entry row, one shared in the middle, one on each
// player's exit row.
var cellKinds = [gridCells]TileKind{
	TileRosetta, TileNormal, TileRosetta,
	TileNormal, TileNormal, TileNormal,
	TileNormal, TileNormal, TileNormal,
	TileNormal, TileRosetta, TileNormal,
	TileNone, TileNormal, TileNone,
	TileGoal, TileNormal, TileGoal,
	TileRosetta, TileNormal, TileRosetta,
	TileNormal, TileNormal, TileNormal,
}

// paths maps (player, path index) -> grid cell. Each path runs up a
// private column, down the shared middle column, then two private
// tiles before the goal: 4 private + 8 shared + 2 private. Path
// indices 3, 7 and 13 land on rosettas for both seats.
var paths = [2][PathLen]int{
	{9, 6, 3, 0, 1, 4, 7, 10, 13, 16, 19, 22, 21, 18},
	{11, 8, 5, 2, 1, 4, 7, 10, 13, 16, 19, 22, 23, 20},
}

// goalCells maps player -> the grid cell of that player's goal.
var goalCells = [2]int{15, 17}

// Cell resolves a path index to its grid cell for the given player.
// GoalIndex resolves to the player's goal cell.
func Cell(player PlayerID, pathIndex int) int {
	if pathIndex == GoalIndex {
		return goalCells[player]
	}
	return paths[player][pathIndex]
}

// TileAt returns the tile kind at a path index of the given player.
func TileAt(player PlayerID, pathIndex int) TileKind {
	return cellKinds[Cell(player, pathIndex)]
}

// IsShared reports whether a path index lies on the middle column,
// where pieces of both players can meet. Both paths cross the shared
// column at the same indices (4 through 11).
func IsShared(player PlayerID, pathIndex int) bool {
	if pathIndex < 0 || pathIndex >= PathLen {
		return false
	}
	return Cell(player, pathIndex)%3 == 1
}

// occupant returns the piece standing on the given grid cell, or nil.
// Grid cells are the canonical occupancy space: private cells can only
// ever hold the owning seat's pieces, shared cells can hold either.
func (g *Game) occupant(cell int) *Piece {
	for i := range g.pieces {
		p := &g.pieces[i]
		if p.OnBoard() && Cell(p.Owner, p.Pos) == cell {
			return p
		}
	}
	return nil
}
