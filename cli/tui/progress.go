package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/justapithecus/partflow/ingest"
)

const (
	maxBarWidth = 60
	maxRecent   = 5
)

// ProgressMsg reports body bytes received.
type ProgressMsg struct {
	Received int64
	Expected int64
}

// PartMsg reports a completed field or the start of a file part.
type PartMsg struct {
	Name     string
	Filename string
	File     bool
	Size     int64
}

// DoneMsg reports the terminal outcome and stops the program.
type DoneMsg struct {
	Status string
	Err    error
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ProgressModel is a Bubble Tea model showing a parse in flight.
type ProgressModel struct {
	title    string
	bar      progress.Model
	onQuit   func()
	received int64
	expected int64
	fields   int
	files    int
	recent   []PartMsg
	status   string
	err      error
	done     bool
	quitting bool
}

// NewProgressModel creates a progress model. onQuit, if set, runs when
// the user quits before the parse ends.
func NewProgressModel(title string, onQuit func()) ProgressModel {
	return ProgressModel{
		title:  title,
		bar:    progress.New(progress.WithGradient(barStart, barEnd), progress.WithWidth(40)),
		onQuit: onQuit,
		status: "negotiating",
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			if !m.done && m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case ProgressMsg:
		m.received = msg.Received
		m.expected = msg.Expected
		if !m.done {
			m.status = "streaming"
		}

	case PartMsg:
		if msg.File {
			m.files++
		} else {
			m.fields++
		}
		m.recent = append(m.recent, msg)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}

	case DoneMsg:
		m.done = true
		m.status = msg.Status
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	if m.quitting && !m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")

	if m.expected > 0 {
		ratio := float64(m.received) / float64(m.expected)
		b.WriteString(m.bar.ViewAs(min(ratio, 1)))
		fmt.Fprintf(&b, "  %s / %s\n", humanize.IBytes(uint64(m.received)), humanize.IBytes(uint64(m.expected)))
	} else {
		fmt.Fprintf(&b, "%s received (length unknown)\n", humanize.IBytes(uint64(m.received)))
	}

	b.WriteString(row("Fields", fmt.Sprint(m.fields)))
	b.WriteString(row("Files", fmt.Sprint(m.files)))
	for _, p := range m.recent {
		if p.File {
			b.WriteString(row("", FileStyle.Render(fmt.Sprintf("file  %s (%s)", p.Name, p.Filename))))
		} else {
			b.WriteString(row("", FieldStyle.Render(fmt.Sprintf("field %s (%s)", p.Name, humanize.IBytes(uint64(p.Size))))))
		}
	}

	status := m.status
	if m.err != nil {
		status += ": " + m.err.Error()
	}
	b.WriteString(row("Status", StateStyle(m.status).Render(status)))

	if !m.done {
		b.WriteString(HelpStyle.Render("Press q or Ctrl+C to cancel"))
	}
	return b.String()
}

func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value) + "\n"
}

// Options configures a Progress program.
type Options struct {
	Title  string
	Output io.Writer
	// Interactive reads key presses from the terminal. Disable when the
	// request body arrives on stdin.
	Interactive bool
	// OnQuit runs when the user quits before the parse ends.
	OnQuit func()
}

// Progress runs a ProgressModel and feeds it from parser callbacks.
type Progress struct {
	program *tea.Program
	done    chan error
}

// NewProgress creates a progress program. Call Start before parsing and
// Finish afterwards.
func NewProgress(opts Options) *Progress {
	programOpts := []tea.ProgramOption{}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	if !opts.Interactive {
		programOpts = append(programOpts, tea.WithInput(nil))
	}
	return &Progress{
		program: tea.NewProgram(NewProgressModel(opts.Title, opts.OnQuit), programOpts...),
		done:    make(chan error, 1),
	}
}

// Start runs the program in the background.
func (p *Progress) Start() {
	go func() {
		_, err := p.program.Run()
		p.done <- err
	}()
}

// Handlers returns parser callbacks that update the view. They never
// register Part callbacks, so they chain with a storage sink.
func (p *Progress) Handlers() ingest.Handlers {
	return ingest.Handlers{
		OnProgress: func(received, expected int64) {
			p.program.Send(ProgressMsg{Received: received, Expected: expected})
		},
		OnField: func(f ingest.Field) error {
			p.program.Send(PartMsg{Name: f.Name, Size: int64(len(f.Value))})
			return nil
		},
		OnFile: func(part *ingest.Part) error {
			p.program.Send(PartMsg{Name: part.Name, Filename: part.Filename, File: true})
			return nil
		},
	}
}

// Finish shows the outcome and waits for the program to exit.
func (p *Progress) Finish(status string, err error) error {
	p.program.Send(DoneMsg{Status: status, Err: err})
	return <-p.done
}
