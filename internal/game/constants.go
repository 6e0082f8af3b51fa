package game

// Alphabet is the set of letters a round can open with. Turkish, minus
// the soft g: no playable word starts with it.
var Alphabet = []rune("ABCÇDEFGHIİJKLMNOÖPRSŞTUÜVYZ")

// Categories is the canonical category list. The order players see is a
// per-game shuffle of this list, fixed at game start.
var Categories = []string{
	"İsim",
	"Şehir",
	"Hayvan",
	"Bitki",
	"Eşya",
	"Ünlü",
	"Ülke",
	"Meslek",
	"Yemek",
	"Dizi/Film",
}

// Avatars players can pick from in the lobby.
var Avatars = []string{
	"🐶", "🐱", "🐭", "🐹", "🐰", "🦊", "🐻", "🐼", "🐨", "🐯", "🦁", "🐮",
	"🐬", "🐵", "🦄", "🐸",
}

const (
	DefaultRoundDurationSec = 60
	DefaultTotalRounds      = 5

	// PointsUnique and PointsDuplicate are the per-category awards for a
	// valid answer, depending on whether another player wrote the same word.
	PointsUnique    = 10
	PointsDuplicate = 5
)
