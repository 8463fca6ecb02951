// Package ui renders ct's terminal output. Colour is used only when the
// output is a terminal; otherwise everything renders as plain text so it can
// be piped and diffed.
package ui

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// UI writes styled output to one writer.
type UI struct {
	out io.Writer
	tty bool
	r   *lipgloss.Renderer

	accent lipgloss.Style
	pass   lipgloss.Style
	warn   lipgloss.Style
	fail   lipgloss.Style
	muted  lipgloss.Style
	header lipgloss.Style
}

// New returns a UI writing to out. Colour is enabled when out is a terminal
// and NO_COLOR is not set.
func New(out io.Writer) *UI {
	tty := IsTerminal(out)
	r := lipgloss.NewRenderer(out)
	if !tty || termenv.EnvNoColor() {
		r.SetColorProfile(termenv.Ascii)
	}

	return &UI{
		out:    out,
		tty:    tty,
		r:      r,
		accent: r.NewStyle().Foreground(colorAccent).Bold(true),
		pass:   r.NewStyle().Foreground(colorPass),
		warn:   r.NewStyle().Foreground(colorWarn),
		fail:   r.NewStyle().Foreground(colorFail).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
		header: r.NewStyle().Bold(true).Padding(0, 1),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Writer returns the underlying writer.
func (u *UI) Writer() io.Writer { return u.out }

// Interactive reports whether the UI may prompt.
func (u *UI) Interactive() bool { return u.tty }

func (u *UI) Accent(s string) string { return u.accent.Render(s) }
func (u *UI) Pass(s string) string   { return u.pass.Render(s) }
func (u *UI) Warn(s string) string   { return u.warn.Render(s) }
func (u *UI) Fail(s string) string   { return u.fail.Render(s) }
func (u *UI) Muted(s string) string  { return u.muted.Render(s) }

// Println writes the arguments joined by spaces and a newline.
func (u *UI) Println(a ...string) {
	_, _ = io.WriteString(u.out, strings.Join(a, " ")+"\n")
}

// Table renders rows under headers with a rounded border.
func (u *UI) Table(headers []string, rows [][]string) string {
	cell := u.r.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(u.muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return u.header
			}
			return cell
		})
	return t.String()
}

// Confirm asks a yes/no question. Without a terminal there is nobody to ask,
// so the answer is yes.
func (u *UI) Confirm(title, description string) (bool, error) {
	if !u.tty {
		return true, nil
	}

	ok := false
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}
