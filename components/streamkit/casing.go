package streamkit

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ImageSuffix marks variables whose value is an image URL.
const ImageSuffix = "_img"

// SnakeToPretty turns an API variable name into a display label: words split
// on "_" and only their first letter is upper-cased. "leaderboard_place"
// becomes "Leaderboard Place" and "hero_KDA" becomes "Hero KDA".
func SnakeToPretty(name string) string {
	words := strings.Split(strings.TrimSpace(name), "_")
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}

func isImageVariable(name string) bool {
	return strings.HasSuffix(name, ImageSuffix)
}
