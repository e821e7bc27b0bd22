package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/tunesync/internal/models"
)

const (
	titleContainsWeight  = 0.5
	titleWordWeight      = 0.3
	artistContainsWeight = 0.4
	artistWordWeight     = 0.2
	exactMatchBonus      = 0.1

	// Words shorter than this are ignored by the partial title and artist checks.
	minWordLen = 3
)

// Score rates how well candidate matches a source track described by artist and title.
//
// Title and artist each contribute a strong substring signal or a weaker word-overlap signal,
// plus a small bonus when both match exactly. Comparison is case-insensitive and the result is
// capped at 1.0.
func Score(artist, title string, candidate models.MatchCandidate) float64 {
	srcTitle := strings.ToLower(title)
	srcArtist := strings.ToLower(artist)
	candTitle := strings.ToLower(candidate.Title)

	candArtists := make([]string, len(candidate.Artists))
	for i, a := range candidate.Artists {
		candArtists[i] = strings.ToLower(a)
	}

	var score float64

	if strings.Contains(candTitle, srcTitle) {
		score += titleContainsWeight
	} else if anyWordIn(srcTitle, candTitle) {
		score += titleWordWeight
	}

	if artistContains(srcArtist, candArtists) {
		score += artistContainsWeight
	} else {
		for _, ca := range candArtists {
			if anyWordIn(srcArtist, ca) {
				score += artistWordWeight
				break
			}
		}
	}

	if srcTitle == candTitle {
		for _, ca := range candArtists {
			if ca == srcArtist {
				score += exactMatchBonus
				break
			}
		}
	}

	return min(score, 1.0)
}

func artistContains(src string, candidates []string) bool {
	for _, ca := range candidates {
		if strings.Contains(ca, src) || strings.Contains(src, ca) {
			return true
		}
	}
	return false
}

// anyWordIn reports whether a word of s at least minWordLen runes long occurs in target.
func anyWordIn(s, target string) bool {
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) >= minWordLen && strings.Contains(target, w) {
			return true
		}
	}
	return false
}
