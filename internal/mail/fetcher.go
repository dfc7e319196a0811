package mail

import (
	"context"
	"time"
)

// Message is a normalized inbound email independent of the provider wire format.
type Message struct {
	MessageID  string
	From       string
	To         string
	Subject    string
	BodyText   string
	BodyHTML   string
	ReceivedAt time.Time
	Headers    map[string]any
}

// FetchOptions bounds a single fetch pass.
type FetchOptions struct {
	// AccessToken overrides the fetcher's own credential when the run is
	// triggered manually by a signed-in user.
	AccessToken string
	DaysBack    int
	MaxCount    int
	Folder      string
}

// Fetcher retrieves recent messages from a mailbox.
type Fetcher interface {
	Fetch(ctx context.Context, opts FetchOptions) ([]Message, error)
}
