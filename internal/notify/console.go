package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// DefaultFailsafe bounds how long a progress indicator may stay visible when
// its dismissal never arrives.
const DefaultFailsafe = 60 * time.Second

// Console prints notifications to a terminal.
type Console struct {
	w        io.Writer
	failsafe time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer

	progress *color.Color
	success  *color.Color
	failure  *color.Color
	info     *color.Color
}

// NewConsole writes to w. Colors are enabled only when w is a terminal.
func NewConsole(w io.Writer, failsafe time.Duration) *Console {
	if failsafe <= 0 {
		failsafe = DefaultFailsafe
	}
	c := &Console{
		w:        w,
		failsafe: failsafe,
		pending:  make(map[string]*time.Timer),
		progress: color.New(color.FgCyan),
		success:  color.New(color.FgGreen, color.Bold),
		failure:  color.New(color.FgRed, color.Bold),
		info:     color.New(color.FgWhite),
	}
	if !isTerminal(w) {
		for _, col := range []*color.Color{c.progress, c.success, c.failure, c.info} {
			col.DisableColor()
		}
	}
	return c
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) Show(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		col    *color.Color
		prefix string
	)
	switch msg.Kind {
	case KindProgress:
		col, prefix = c.progress, "…"
		if msg.ID != "" {
			c.armLocked(msg.ID)
		}
	case KindSuccess:
		col, prefix = c.success, "✓"
	case KindError:
		col, prefix = c.failure, "✗"
	default:
		col, prefix = c.info, "i"
	}

	_, err := col.Fprintf(c.w, "%s %s\n", prefix, msg.Text)
	return err
}

func (c *Console) Dismiss(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.pending[id]
	if !ok {
		return nil
	}
	t.Stop()
	delete(c.pending, id)
	return nil
}

// Pending reports how many progress indicators are still visible.
func (c *Console) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Console) armLocked(id string) {
	if old, ok := c.pending[id]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(c.failsafe, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending[id] != t {
			return
		}
		delete(c.pending, id)
		_, _ = fmt.Fprintf(c.w, "… still working, hiding progress indicator\n")
	})
	c.pending[id] = t
}
