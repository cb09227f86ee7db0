package main

import (
	"context"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/mmpa/pkg/engine"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/signal"
	"github.com/mattn/go-runewidth"
)

const (
	refreshInterval = 100 * time.Millisecond
	maxEventLines   = 8
	bandBarWidth    = 24
)

func runWatch(args []string) error {
	fs, cf := newFlagSet("watch", "Run the render loop with a live terminal dashboard.")
	logFile := fs.String("log", "", "write logs to this file (default: discard)")
	_ = fs.Parse(args)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The dashboard owns the terminal; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is a CLI flag
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}

	eng, _, err := openEngine(ctx, cf, logOut)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	loopDone := make(chan error, 1)
	go func() { loopDone <- eng.Run(ctx) }()

	p := tea.NewProgram(newWatchModel(eng), tea.WithAltScreen(), tea.WithContext(ctx))
	stopBridge := startBridge(ctx, p, eng.Events())

	_, err = p.Run()
	stopBridge()
	cancel()
	<-loopDone
	if err != nil && ctx.Err() != nil {
		return nil
	}

	return err
}

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// watchModel is the dashboard: morph progress, transport, auto mode, the
// mixed signal and a short event log.
type watchModel struct {
	eng    *engine.Engine
	bar    progress.Model
	status engine.Status
	mixed  signal.Signal
	log    []string
	notice string
	width  int
}

func newWatchModel(eng *engine.Engine) watchModel {
	m := watchModel{
		eng: eng,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	m.sample()

	return m
}

func (m *watchModel) sample() {
	m.status = m.eng.Status()
	m.mixed = m.eng.Signals().CurrentSignal()
}

func (m watchModel) Init() tea.Cmd {
	return refresh()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 10)
		return m, nil

	case refreshMsg:
		m.sample()
		return m, refresh()

	case eventMsg:
		m.log = append(m.log, formatEvent(events.Event(msg)))
		if len(m.log) > maxEventLines {
			m.log = m.log[len(m.log)-maxEventLines:]
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.notice = ""
	player := m.eng.Player()

	switch key := msg.String(); key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case " ":
		if !player.Pause() && !player.Resume() {
			m.notice = "nothing is playing"
		}
	case "n":
		player.SkipNext()
	case "p":
		player.SkipPrev()
	case "s":
		player.Stop()
		m.eng.Morph().Stop()
	case "a":
		if m.eng.Auto().IsActive() {
			m.eng.Auto().Stop()
		} else if !m.eng.StartAuto() {
			m.notice = "auto mode could not start"
		}
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			m.morphToIndex(int(key[0] - '1'))
		}
	}

	m.sample()

	return m, nil
}

func (m *watchModel) morphToIndex(i int) {
	list := m.eng.Anchors().List()
	if i >= len(list) {
		m.notice = fmt.Sprintf("no anchor #%d", i+1)
		return
	}
	m.eng.MorphTo(list[i].ID, -1, "")
}

func (m watchModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("mmpa") + dimStyle.Render(fmt.Sprintf("  %d anchors · %d sequences", m.status.Anchors, m.status.Sequences)))
	sb.WriteString("\n\n")

	sb.WriteString(sectionStyle.Render(m.morphView()))
	sb.WriteString("\n\n")
	sb.WriteString(sectionStyle.Render(m.playbackView()))
	sb.WriteString("\n\n")
	sb.WriteString(sectionStyle.Render(m.signalView()))
	sb.WriteString("\n\n")

	sb.WriteString(headingStyle.Render("Events"))
	sb.WriteString("\n")
	if len(m.log) == 0 {
		sb.WriteString(dimStyle.Render("  (none yet)"))
		sb.WriteString("\n")
	}
	for _, line := range m.log {
		sb.WriteString("  " + fit(line, m.width-2) + "\n")
	}

	sb.WriteString("\n")
	if m.notice != "" {
		sb.WriteString(errorStyle.Render(m.notice) + "\n")
	}
	sb.WriteString(dimStyle.Render("1-9 morph to anchor · space pause/resume · n/p skip · s stop · a auto · q quit"))

	return sb.String()
}

func (m watchModel) morphView() string {
	mo := m.status.Morph
	if mo == nil {
		return headingStyle.Render("Morph") + dimStyle.Render("  idle")
	}

	return fmt.Sprintf("%s  %s → %s  %s\n%s %3.0f%%",
		headingStyle.Render("Morph"),
		fit(mo.From, 40), fit(mo.To, 40),
		dimStyle.Render(fmt.Sprintf("%s · %s", time.Duration(mo.DurationMS)*time.Millisecond, mo.Easing)),
		m.bar.ViewAs(mo.Progress), mo.Progress*100,
	)
}

func (m watchModel) playbackView() string {
	pb := m.status.Playback

	auto := dimStyle.Render("auto off")
	if m.status.Auto {
		auto = activeStyle.Render("auto on")
	}

	if !pb.IsPlaying {
		return headingStyle.Render("Playback") + dimStyle.Render("  stopped  ") + auto
	}

	state := activeStyle.Render("playing")
	if pb.IsPaused {
		state = dimStyle.Render("paused")
	}
	var flags []string
	if pb.LoopEnabled {
		flags = append(flags, "loop")
	}
	if pb.Shuffle {
		flags = append(flags, "shuffle")
	}

	return fmt.Sprintf("%s  %s  %s  step %d/%d  %s left  %s  %s",
		headingStyle.Render("Playback"), state, fit(pb.CurrentSequenceName, 32),
		pb.CurrentStep, pb.TotalSteps,
		(time.Duration(m.status.TimeRemainingMS) * time.Millisecond).Round(100*time.Millisecond),
		dimStyle.Render(strings.Join(flags, " ")), auto,
	)
}

func (m watchModel) signalView() string {
	info := m.status.Signal

	var sb strings.Builder
	sb.WriteString(headingStyle.Render("Signal") + dimStyle.Render(fmt.Sprintf("  mix %s · quality %.2f", info.Mode, m.mixed.Quality())))

	for _, src := range info.Sources {
		st := string(src.State)
		switch {
		case src.State == signal.Error:
			st = errorStyle.Render(st)
		case src.State == signal.Running && src.Enabled:
			st = activeStyle.Render(st)
		default:
			st = dimStyle.Render(st)
		}
		fmt.Fprintf(&sb, "\n  %-12s %-10s %s  w=%.2f", fit(src.ID, 12), src.Type, st, src.Weight)
	}

	for _, name := range m.mixed.BandNames() {
		fmt.Fprintf(&sb, "\n  %-12s %s %.2f", fit(name, 12), barStyle.Render(levelBar(m.mixed.Band(name), bandBarWidth)), m.mixed.Band(name))
	}

	return sb.String()
}

// fit truncates s to width cells. A non-positive width leaves s as is.
func fit(s string, width int) string {
	if width <= 0 {
		return s
	}

	return runewidth.Truncate(s, width, "…")
}

// levelBar draws v in [0,1] as a bar of the given width.
func levelBar(v float64, width int) string {
	n := int(max(0, min(1, v))*float64(width) + 0.5)

	return strings.Repeat("█", n) + strings.Repeat("░", width-n)
}

func formatEvent(e events.Event) string {
	line := e.Timestamp.Format("15:04:05") + " " + string(e.Kind)
	if e.Subject != "" {
		line += " " + e.Subject
	}
	switch d := e.Data.(type) {
	case string:
		line += " (" + d + ")"
	case int:
		line += fmt.Sprintf(" (%d)", d)
	case bool:
		line += fmt.Sprintf(" (%t)", d)
	case signal.State:
		line += " (" + string(d) + ")"
	}

	return line
}
