// internal/game/dice.go
//
// Dice for the Ur engine. The historical game uses four tetrahedral
// dice with two of four corners marked; each die is a fair binary
// trial and the roll is the number of marked corners facing up.
//
// Summing four binary trials gives the binomial distribution:
//
//	P(0) = P(4) = 1/16
//	P(1) = P(3) = 4/16
//	P(2)        = 6/16
//
// Determinism: a roller built from a seed always produces the same
// roll sequence for that seed, so game play is reproducible under test.

package game

import "math/rand"

const diceCount = 4

// Roller produces dice rolls in [0, diceCount].
type Roller interface {
	Roll() int
}

// tetraDice rolls four independent binary dice and sums them.
type tetraDice struct {
	rng *rand.Rand
}

// NewRoller returns a deterministic Roller seeded with seed.
func NewRoller(seed int64) Roller {
	return &tetraDice{rng: rand.New(rand.NewSource(seed))}
}

// Roll returns the sum of four fair binary dice.
func (d *tetraDice) Roll() int {
	n := 0
	for i := 0; i < diceCount; i++ {
		n += d.rng.Intn(2)
	}
	return n
}
