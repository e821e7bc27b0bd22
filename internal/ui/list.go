package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tunesync/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.MatchedTrack] to implement [list.Item].
type trackItem struct {
	track     models.MatchedTrack
	threshold float64
}

func (i trackItem) FilterValue() string { return i.track.ArtistString() + " " + i.track.Title }
func (i trackItem) Title() string {
	return fmt.Sprintf("%s - %s", i.track.ArtistString(), i.track.Title)
}

func (i trackItem) Description() string {
	if !i.track.HasMatch() {
		return "no match"
	}
	m := i.track.Match
	desc := fmt.Sprintf("%s → %s - %s", Confidence(m.Confidence, i.threshold), m.ArtistString(), m.Title)
	if m.Duration != "" {
		desc = fmt.Sprintf("%s • %s", desc, m.Duration)
	}
	return desc
}

func trackItems(tracks []models.MatchedTrack, threshold float64) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t, threshold: threshold}
	}
	return items
}
