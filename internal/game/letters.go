package game

import (
	"crypto/rand"
	"math/big"
)

// NextLetter picks a round letter uniformly at random from the alphabet,
// excluding letters already used this game. When every letter has been
// used the exclusion set is ignored rather than failing, so very long
// games keep going with repeats.
//
// The source is crypto/rand: the letter decides round fairness, so it
// must not be guessable from previous draws.
func NextLetter(used map[rune]bool) rune {
	available := make([]rune, 0, len(Alphabet))
	for _, r := range Alphabet {
		if !used[r] {
			available = append(available, r)
		}
	}
	if len(available) == 0 {
		available = Alphabet
	}
	return available[secureIndex(len(available))]
}

// ShuffledCategories returns a fresh category ordering for one game.
// It is produced once at game start and held fixed so round numbering
// and vote/answer keys line up across every client.
func ShuffledCategories() []string {
	order := make([]string, len(Categories))
	copy(order, Categories)
	for i := len(order) - 1; i > 0; i-- {
		j := secureIndex(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func secureIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken;
		// nothing sensible to do but give a stable fallback.
		return 0
	}
	return int(n.Int64())
}
