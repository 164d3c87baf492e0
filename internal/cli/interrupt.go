package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
)

// InterruptHandler cancels a tag run on SIGINT or SIGTERM and tells the user
// whether the ledger was touched.
type InterruptHandler struct {
	writer      io.Writer
	mu          sync.Mutex
	interrupted bool
	applying    bool
}

// NewInterruptHandler reports to writer, or stdout when writer is nil.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{writer: writer}
}

// HandleInterrupts derives a context that ends on the first interrupt signal
// or when the returned cancel func is called.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			h.interrupt()
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// SetApplying marks the window in which updates are being written.
func (h *InterruptHandler) SetApplying(applying bool) {
	h.mu.Lock()
	h.applying = applying
	h.mu.Unlock()
}

// WasInterrupted reports whether a signal arrived.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	if h.interrupted {
		h.mu.Unlock()
		return
	}
	h.interrupted = true
	applying := h.applying
	h.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(FormatWarning("Tagging interrupted!"))
	b.WriteString("\n")
	if applying {
		b.WriteString(FormatInfo("Updates are applied in one transaction; the ledger was rolled back."))
	} else {
		b.WriteString(FormatInfo("No updates were applied."))
	}
	b.WriteString("\n")

	if _, err := io.WriteString(h.writer, b.String()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}
