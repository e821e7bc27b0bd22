package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MatchView ViewState = iota
	TrackListView
	ConfirmView
	SyncView
	ResultView
)

// SyncRecorder persists finished syncs.
type SyncRecorder interface {
	Create(record *models.SyncRecord) error
}

// ReviewOpts configures a review session.
type ReviewOpts struct {
	Ref          string  // Spotify playlist reference
	PlaylistName string  // Target playlist name, defaults to the source name
	Description  string  // Target playlist description, defaults to [tasks.DefaultDescription]
	TopK         int     // Candidates per track
	Threshold    float64 // Sync and highlight cutoff
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	pipeline     *tasks.Pipeline
	builder      *tasks.PlaylistBuilder
	syncs        SyncRecorder
	opts         ReviewOpts
	width        int
	height       int
	trackList    list.Model
	run          *tasks.RunResult
	progressChan chan tasks.ProgressUpdate
	done         chan tea.Msg
	progress     tasks.ProgressUpdate
	result       *models.PlaylistCreationResult
	recordErr    error
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a review model. syncs may be nil, in which case syncs are not recorded.
func NewModel(ctx context.Context, pipeline *tasks.Pipeline, builder *tasks.PlaylistBuilder, syncs SyncRecorder, opts ReviewOpts) *Model {
	return &Model{
		ctx:      ctx,
		view:     MatchView,
		pipeline: pipeline,
		builder:  builder,
		syncs:    syncs,
		opts:     opts,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts matching the playlist.
func (m *Model) Init() tea.Cmd {
	return m.startMatch()
}

// Run returns the finished match run, if any.
func (m *Model) Run() *tasks.RunResult { return m.run }

// Result returns the sync result, if a sync was attempted.
func (m *Model) Result() *models.PlaylistCreationResult { return m.result }

// Err returns the error that stopped the review, if any.
func (m *Model) Err() error { return m.err }

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.run != nil {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MatchView, SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case progressMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case matchDoneMsg:
		m.progressChan = nil
		if msg.err != nil {
			m.err = msg.err
			m.view = ResultView
			return m, nil
		}
		m.run = msg.run
		m.trackList = list.New(trackItems(msg.run.Tracks, m.opts.Threshold), list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("Matches for '%s'", msg.run.Metadata.Name)
		if m.width > 0 {
			m.trackList.SetSize(m.width-4, m.height-8)
		}
		m.view = TrackListView
		return m, nil

	case syncDoneMsg:
		m.progressChan = nil
		result := msg.result
		m.result = &result
		if m.syncs != nil {
			m.recordErr = m.syncs.Create(models.NewSyncRecord(m.run.RunID, result))
		}
		m.view = ResultView
		return m, nil
	}

	if m.view == TrackListView {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MatchView:
		return m.renderProgress("Matching Playlist")
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderProgress("Syncing Playlist")
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.sync):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), msg.String() == "q":
		m.view = TrackListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back) && m.run != nil:
		m.view = TrackListView
		return m, nil
	}
	return m, nil
}

func (m *Model) playlistName() string {
	if m.opts.PlaylistName != "" {
		return m.opts.PlaylistName
	}
	if m.run != nil {
		return m.run.Metadata.Name
	}
	return ""
}

// startMatch runs the pipeline in the background. The final message is queued before the progress
// channel is closed, so waitForProgress always finds it.
func (m *Model) startMatch() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan tea.Msg, 1)
	progress, done := m.progressChan, m.done

	go func() {
		run, err := m.pipeline.Run(m.ctx, m.opts.Ref, m.opts.TopK, m.opts.Threshold, progress)
		done <- matchDoneMsg{run: run, err: err}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) startSync() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan tea.Msg, 1)
	progress, done := m.progressChan, m.done
	name, tracks := m.playlistName(), m.run.Tracks

	go func() {
		result := m.builder.Sync(m.ctx, name, tracks, m.opts.Threshold, m.opts.Description, progress)
		done <- syncDoneMsg{result: result}
		close(progress)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressMsg(update)
	}
}

func (m *Model) renderTrackList() string {
	helpKeys := []key.Binding{m.keys.sync, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	summary := RenderRunSummary(*m.run.Metadata, m.run.Stats, m.opts.Threshold)
	return fmt.Sprintf("%s\n%s\n\n%s", summary, m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	name := m.playlistName()
	eligible := len(tasks.Eligible(m.run.Tracks, m.opts.Threshold))

	title := Title(fmt.Sprintf("Create '%s' on YouTube?", name))
	info := fmt.Sprintf("\nTracks to add: %d of %d (confidence ≥ %s)\nVisibility: %s\n",
		eligible, len(m.run.Tracks), formatConfidence(m.opts.Threshold), tasks.DefaultVisibility)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderProgress(heading string) string {
	title := Title(heading)

	var phase string
	switch m.progress.Phase {
	case tasks.ResolvePlaylist, tasks.FetchMetadata, tasks.FetchTracks:
		phase = "Fetching Spotify playlist..."
	case tasks.MatchTracks:
		phase = fmt.Sprintf("Searching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.CreatePlaylist:
		phase = "Creating playlist on YouTube..."
	case tasks.AddTracks:
		phase = fmt.Sprintf("Adding tracks (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return Error(fmt.Sprintf("Match failed: %v", m.err)) + "\n\n" + Help("Press q to quit")
	}
	if m.result == nil {
		return Error("No result available") + "\n\n" + Help("Press q to quit")
	}

	var b strings.Builder
	b.WriteString(RenderSyncResult(*m.result))
	if m.recordErr != nil {
		b.WriteString(Warning(fmt.Sprintf("Sync was not saved to history: %v", m.recordErr)))
		b.WriteString("\n")
	}

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}
