package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Veraticus/order-tagger/internal/model"
	"github.com/Veraticus/order-tagger/internal/tagger"
)

// ErrInputTerminated is returned when input ends before a choice was made.
var ErrInputTerminated = errors.New("input terminated")

// PromptStats counts the answers given during one run.
type PromptStats struct {
	Asked    int
	Accepted int
	Declined int
}

type standingAnswer int

const (
	askEach standingAnswer = iota
	acceptAll
	declineAll
)

// Prompter asks the user before overwriting a tag the tool wrote earlier.
type Prompter struct {
	writer   io.Writer
	reader   *NonBlockingReader
	stats    PromptStats
	standing standingAnswer
	mu       sync.Mutex
}

// NewPrompter creates a prompter reading answers from reader.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// ConfirmRetag implements tagger.Confirmer.
func (p *Prompter) ConfirmRetag(ctx context.Context, tx model.Transaction, proposed model.Update) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	switch p.standing {
	case acceptAll:
		p.stats.Accepted++
		return true, nil
	case declineAll:
		p.stats.Declined++
		return false, nil
	}

	p.stats.Asked++
	if _, err := fmt.Fprintln(p.writer, RenderBox("Retag transaction?", formatRetag(tx, proposed))); err != nil {
		return false, fmt.Errorf("failed to write retag box: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer,
		"  [Y] Retag  [N] Keep current  [A] Retag all remaining  [S] Skip all remaining"); err != nil {
		return false, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice", []string{"y", "n", "a", "s"})
	if err != nil {
		return false, err
	}

	switch choice {
	case "a":
		p.standing = acceptAll
		fallthrough
	case "y":
		p.stats.Accepted++
		return true, nil
	case "s":
		p.standing = declineAll
	}
	p.stats.Declined++
	return false, nil
}

// Stats returns the answers given so far.
func (p *Prompter) Stats() PromptStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func formatRetag(tx model.Transaction, proposed model.Update) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s\n", tx.Date.Format("Jan 2, 2006"), FormatAmount(tx.Amount), SubtleStyle.Render(tx.ID))
	fmt.Fprintf(&b, "%s %s (%s)\n", BoldStyle.Render("Current: "), tx.Description, tx.Category)
	fmt.Fprintf(&b, "%s %s (%s)", BoldStyle.Render("Proposed:"), proposed.Description, proposed.Category)
	for _, s := range proposed.Splits {
		fmt.Fprintf(&b, "\n  • %s  %s (%s)", FormatAmount(s.Amount), s.Description, s.Category)
	}
	return b.String()
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrInputTerminated
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

var _ tagger.Confirmer = (*Prompter)(nil)
