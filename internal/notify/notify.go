// Package notify delivers status messages to a display surface. Delivery is
// fire-and-forget: failures are logged and never reach the caller, so a lost
// notification can not mask the outcome it describes.
package notify

import "context"

// Kind is the visual category of a message.
type Kind string

const (
	KindProgress Kind = "progress"
	KindSuccess  Kind = "success"
	KindError    Kind = "error"
	KindInfo     Kind = "info"
)

// Message is one notification. ID correlates a progress indicator with its
// later dismissal and may be empty for other kinds.
type Message struct {
	Kind Kind
	Text string
	ID   string
}

// Relay is a display surface.
type Relay interface {
	Show(ctx context.Context, msg Message) error
	Dismiss(ctx context.Context, id string) error
}
