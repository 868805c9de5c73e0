package cli

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gunta/skypilot/internal/model"
)

// watchDisplay shows the updates of a watched video.
type watchDisplay interface {
	Update(v model.Video)
	Done()
}

// newWatchDisplay draws a live progress bar on a terminal and plain lines
// everywhere else. onInterrupt runs when the user presses ctrl+c in the
// terminal view.
func newWatchDisplay(onInterrupt func()) watchDisplay {
	if stdoutIsTTY() && stdinIsTTY() {
		return newTeaDisplay(onInterrupt)
	}
	return &lineDisplay{}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

type lineDisplay struct {
	last string
}

func (d *lineDisplay) Update(v model.Video) {
	line := fmt.Sprintf("%s %3d%% %s", v.ID, clampProgress(v.Progress), v.Status.Label())
	if line != d.last {
		fmt.Println(line)
	}
	d.last = line
}

func (d *lineDisplay) Done() {}

type videoMsg model.Video

type watchDoneMsg struct{}

type watchModel struct {
	bar         progress.Model
	video       model.Video
	seen        bool
	stopping    bool
	onInterrupt func()
}

func newWatchModel(onInterrupt func()) watchModel {
	return watchModel{
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(32)),
		onInterrupt: onInterrupt,
	}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case videoMsg:
		m.video = model.Video(msg)
		m.seen = true
	case tea.WindowSizeMsg:
		width := msg.Width - 48
		if width > 48 {
			width = 48
		}
		if width < 10 {
			width = 10
		}
		m.bar.Width = width
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.stopping {
			m.stopping = true
			if m.onInterrupt != nil {
				go m.onInterrupt()
			}
		}
	case watchDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m watchModel) View() string {
	if !m.seen {
		return mutedStyle.Render("submitting...") + "\n"
	}
	pct := clampProgress(m.video.Progress)
	var b strings.Builder
	b.WriteString(mutedStyle.Render(m.video.ID))
	b.WriteString(" ")
	b.WriteString(m.bar.ViewAs(float64(pct) / 100))
	b.WriteString(fmt.Sprintf(" %3d%% ", pct))
	b.WriteString(statusStyle(m.video.Status).Render(m.video.Status.Label()))
	if m.stopping {
		b.WriteString(busyStyle.Render("  stopping..."))
	} else {
		b.WriteString(mutedStyle.Render("  ctrl+c stops watching"))
	}
	b.WriteString("\n")
	return b.String()
}

type teaDisplay struct {
	p    *tea.Program
	done chan struct{}
}

func newTeaDisplay(onInterrupt func()) *teaDisplay {
	d := &teaDisplay{
		p:    tea.NewProgram(newWatchModel(onInterrupt)),
		done: make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		if _, err := d.p.Run(); err != nil {
			log.Printf("progress display: %v", err)
		}
	}()
	return d
}

func (d *teaDisplay) Update(v model.Video) {
	d.p.Send(videoMsg(v))
}

func (d *teaDisplay) Done() {
	d.p.Send(watchDoneMsg{})
	<-d.done
}
