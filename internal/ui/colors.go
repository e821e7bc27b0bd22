package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// MediumConfidence is the lower bound of the yellow band. Anything below is shown in red.
const MediumConfidence = 0.4

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Level buckets a confidence for display.
type Level int

const (
	Low Level = iota
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// ConfidenceLevel is High at or above threshold, Medium at or above [MediumConfidence], else Low.
func ConfidenceLevel(c, threshold float64) Level {
	switch {
	case c >= threshold:
		return High
	case c >= MediumConfidence:
		return Medium
	default:
		return Low
	}
}

func (p *Palette) confidence(c, threshold float64) lipgloss.Style {
	switch ConfidenceLevel(c, threshold) {
	case High:
		return p.ok
	case Medium:
		return p.warn
	default:
		return p.err
	}
}

// Confidence renders c with two decimals in the color of its level.
func Confidence(c, threshold float64) string {
	return styles.confidence(c, threshold).Render(formatConfidence(c))
}

func Title(s string) string   { return styles.title.Render(s) }
func Success(s string) string { return styles.ok.Render(s) }
func Error(s string) string   { return styles.err.Render(s) }
func Warning(s string) string { return styles.warn.Render(s) }
func Help(s string) string    { return styles.help.Render(s) }
