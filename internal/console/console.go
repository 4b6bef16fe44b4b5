// Package console runs the guided requirements conversation in a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"requirements-agent/internal/document"
	"requirements-agent/internal/domain"
	"requirements-agent/internal/knowledge"
	"requirements-agent/internal/session"
)

const help = `Commands:
  /state                 show what has been captured so far
  /answer <field> <text> answer a clarification question
  /finish                move the conversation to the summary stage
  /export [path]         write the requirements document
  /quit                  leave`

// Sessions is the subset of the session service used by the console.
type Sessions interface {
	Start(ctx context.Context) (session.State, error)
	Get(ctx context.Context, id string) (session.State, error)
	Submit(ctx context.Context, id, text string) (session.Turn, error)
	SetRequirement(ctx context.Context, id, field string, value any) (session.State, error)
	Clarifications(ctx context.Context, id string) ([]knowledge.Clarification, error)
	Finish(ctx context.Context, id string) (session.State, error)
	Document(ctx context.Context, id string) (session.Document, error)
}

type Console struct {
	sessions Sessions
	in       *bufio.Scanner
	out      io.Writer
	exportTo string
	phase    domain.Phase
}

// New returns a console reading lines from in. Exported documents without an
// explicit path are written to dir.
func New(sessions Sessions, in io.Reader, out io.Writer, dir string) *Console {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	return &Console{sessions: sessions, in: sc, out: out, exportTo: dir}
}

// Run starts a session and processes input until /quit, EOF or ctx is done.
// Cancelling ctx returns immediately, even while waiting for a line.
func (c *Console) Run(ctx context.Context) error {
	st, err := c.sessions.Start(ctx)
	if err != nil {
		return fmt.Errorf("console: start: %w", err)
	}
	c.phase = st.Phase
	for _, m := range st.History {
		c.printMessage(m)
	}
	c.printf("(type /help for commands)\n")

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for c.in.Scan() {
			select {
			case lines <- c.in.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- c.in.Err()
	}()

	for {
		c.printf("> ")
		var line string
		select {
		case <-ctx.Done():
			c.printf("\n")
			return nil
		case l, ok := <-lines:
			if !ok {
				c.printf("\n")
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		quit, err := c.handle(ctx, st.ID, line)
		if err != nil {
			c.printf("! %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func (c *Console) handle(ctx context.Context, id, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		turn, err := c.sessions.Submit(ctx, id, line)
		if err != nil {
			return false, err
		}
		c.printMessage(turn.Assistant)
		c.notePhase(turn.State.Phase)
		return false, c.announceClarifications(ctx, id, turn.State)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		c.printf("%s\n", help)
	case "/state":
		st, err := c.sessions.Get(ctx, id)
		if err != nil {
			return false, err
		}
		c.printState(st)
		return false, c.announceClarifications(ctx, id, st)
	case "/answer":
		field, text, ok := strings.Cut(arg, " ")
		if !ok || strings.TrimSpace(text) == "" {
			return false, errors.New("usage: /answer <field> <text>")
		}
		st, err := c.sessions.SetRequirement(ctx, id, field, parseAnswer(text))
		if err != nil {
			return false, err
		}
		c.printf("Saved %s.\n", document.Heading(field))
		return false, c.announceClarifications(ctx, id, st)
	case "/finish":
		st, err := c.sessions.Finish(ctx, id)
		if err != nil {
			return false, err
		}
		c.phase = st.Phase
		c.printf("Conversation moved to %s. Use /export to save the document.\n", st.Phase)
	case "/export":
		path, err := c.export(ctx, id, arg)
		if err != nil {
			return false, err
		}
		c.printf("Requirements written to %s\n", path)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (c *Console) export(ctx context.Context, id, path string) (string, error) {
	doc, err := c.sessions.Document(ctx, id)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = filepath.Join(c.exportTo, doc.Filename)
	}
	if err := os.WriteFile(path, []byte(doc.Body), 0o644); err != nil {
		return "", fmt.Errorf("console: export: %w", err)
	}
	return path, nil
}

// announceClarifications lists the unanswered questions once the project is
// past the introduction. Answers count toward the clarification stage.
func (c *Console) announceClarifications(ctx context.Context, id string, st session.State) error {
	if st.Phase == domain.PhaseIntroduction {
		return nil
	}
	pending, err := c.sessions.Clarifications(ctx, id)
	if err != nil {
		return err
	}
	for _, q := range pending {
		c.printf("  [%s] %s\n", q.Field, q.Question)
	}
	if len(pending) > 0 {
		c.printf("  Answer with /answer <field> <text>.\n")
	}
	return nil
}

func (c *Console) notePhase(p domain.Phase) {
	if p == c.phase {
		return
	}
	c.phase = p
	c.printf("  (stage: %s)\n", p)
}

func (c *Console) printMessage(m domain.Message) {
	c.printf("%s: %s\n", m.Role, m.Text)
}

func (c *Console) printState(st session.State) {
	pt := string(st.Context.ProjectType)
	if pt == "" {
		pt = "not yet determined"
	}
	c.printf("Stage: %s\nProject type: %s\n", st.Phase, pt)
	for _, k := range st.Requirements.Keys() {
		c.printf("  %s: %v\n", document.Heading(k), st.Requirements[k])
	}
	if len(st.Context.TechnicalTerms) > 0 {
		c.printf("Technical terms: %s\n", strings.Join(st.Context.TechnicalTerms, ", "))
	}
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// parseAnswer turns yes/no replies into booleans and keeps anything else as
// text.
func parseAnswer(s string) any {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		return true
	case "no", "n", "false":
		return false
	}
	return s
}
