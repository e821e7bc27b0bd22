package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/tasks"
)

var (
	_ tea.Msg = progressMsg{}
	_ tea.Msg = matchDoneMsg{}
	_ tea.Msg = syncDoneMsg{}
)

// progressMsg carries one pipeline or sync progress update.
type progressMsg tasks.ProgressUpdate

// matchDoneMsg is sent once the pipeline run finishes.
type matchDoneMsg struct {
	run *tasks.RunResult
	err error
}

// syncDoneMsg is sent once the playlist sync finishes.
type syncDoneMsg struct {
	result models.PlaylistCreationResult
}
