package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/shoplist/internal/apperr"
	"github.com/dukerupert/shoplist/internal/grocery"
	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/reconcile"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Request rejected or sync left operations behind
	ExitCommandError = 2 // Bad invocation, config or local database problem
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if apperr.IsStorage(err) {
		return ExitCommandError
	}
	return ExitFailure
}

// ErrorMessage renders err for the terminal. Classified errors show only
// their user-facing message.
func ErrorMessage(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Error()
	}
	return apperr.Message(err)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	localStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// printer writes command results in the selected format.
type printer struct {
	format string
	w      io.Writer
	now    func() time.Time
}

func newPrinter(format string, w io.Writer) *printer {
	return &printer{format: format, w: w, now: time.Now}
}

// emit encodes v for json/yaml, or calls text for the human format.
func (p *printer) emit(v any, text func(w io.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(p.w)
		return nil
	}
}

func (p *printer) text() bool {
	return p.format != "json" && p.format != "yaml"
}

// badge prints the pending-sync indicator when operations are waiting.
func (p *printer) badge(pending int) {
	if !p.text() || pending == 0 {
		return
	}
	label := fmt.Sprintf("%d change waiting to sync", pending)
	if pending != 1 {
		label = fmt.Sprintf("%d changes waiting to sync", pending)
	}
	fmt.Fprintln(p.w, pendingStyle.Render(label))
}

func (p *printer) ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, p.now(), "ago", "from now")
}

func (p *printer) listLine(w io.Writer, l model.List) {
	name := titleStyle.Render(l.Name)
	if model.IsTempID(l.ID) {
		name += " " + localStyle.Render("(not synced)")
	}
	fmt.Fprintf(w, "%s  %s  %d/%d done  %s\n",
		shortID(l.ID), name, l.CompletedCount(), len(l.Items),
		mutedStyle.Render("updated "+p.ago(l.UpdatedAt)))
}

func (p *printer) listDetail(w io.Writer, l model.List) {
	p.listLine(w, l)
	if l.Description != nil {
		fmt.Fprintln(w, mutedStyle.Render(*l.Description))
	}
	if len(l.Items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  (no items)"))
		return
	}
	for _, it := range l.Items {
		p.itemLine(w, it)
	}
}

func (p *printer) itemLine(w io.Writer, it model.Item) {
	box := "[ ]"
	name := it.Name
	if it.Completed {
		box = "[x]"
		name = doneStyle.Render(name)
	}
	category := ""
	if it.Category != nil {
		category = mutedStyle.Render(grocery.Emoji(*it.Category) + " " + *it.Category)
	}
	line := fmt.Sprintf("  %s %s  %s  %s %s  %s", box, shortID(it.ID), name, humanize.Comma(int64(it.Quantity)), it.Unit, category)
	fmt.Fprintln(w, strings.TrimRight(line, " "))
}

// renderNotice formats a reconciler notice for stderr.
func renderNotice(n reconcile.Notice) string {
	var b strings.Builder
	if n.IsWarning() {
		b.WriteString(warnStyle.Render("! " + n.Message))
	} else {
		b.WriteString(infoStyle.Render("· " + n.Message))
	}
	if n.Summary != nil {
		for _, f := range n.Summary.Failures {
			fmt.Fprintf(&b, "\n  %s: %s", f.Op.String(), apperr.Message(f.Err))
		}
	}
	return b.String()
}

// shortID abbreviates an id for display. Any prefix it prints is accepted
// back wherever a list or item id is expected.
func shortID(id string) string {
	prefix := ""
	rest := id
	switch {
	case strings.HasPrefix(id, model.TempItemIDPrefix):
		prefix, rest = model.TempItemIDPrefix, strings.TrimPrefix(id, model.TempItemIDPrefix)
	case strings.HasPrefix(id, model.TempIDPrefix):
		prefix, rest = model.TempIDPrefix, strings.TrimPrefix(id, model.TempIDPrefix)
	}
	if len(rest) > 8 {
		rest = rest[:8]
	}
	return prefix + rest
}
