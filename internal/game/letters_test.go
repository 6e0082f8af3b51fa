package game

import "testing"

func TestNextLetterNeverRepeats(t *testing.T) {
	used := map[rune]bool{}
	for i := 0; i < len(Alphabet); i++ {
		letter := NextLetter(used)
		if used[letter] {
			t.Fatalf("letter %q repeated with %d letters still free", letter, len(Alphabet)-i)
		}
		used[letter] = true
	}
}

func TestNextLetterResetsWhenExhausted(t *testing.T) {
	used := map[rune]bool{}
	for _, r := range Alphabet {
		used[r] = true
	}

	letter := NextLetter(used)
	found := false
	for _, r := range Alphabet {
		if r == letter {
			found = true
		}
	}
	if !found {
		t.Fatalf("got %q, not in alphabet", letter)
	}
}

func TestShuffledCategoriesKeepsAll(t *testing.T) {
	order := ShuffledCategories()
	if len(order) != len(Categories) {
		t.Fatalf("got %d categories, want %d", len(order), len(Categories))
	}

	seen := map[string]bool{}
	for _, c := range order {
		seen[c] = true
	}
	for _, c := range Categories {
		if !seen[c] {
			t.Fatalf("category %q missing from shuffle", c)
		}
	}
}
