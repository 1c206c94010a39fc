package driven

import (
	"context"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// Mailbox is the notification-channel capability the notice monitor polls.
// The Gmail adapter implements it; tests substitute a fake.
type Mailbox interface {
	// ListUnread returns references to unread messages under the given
	// label. Filtering by sender happens after Fetch, since list results
	// only carry ids.
	ListUnread(ctx context.Context, label string) ([]domain.MessageRef, error)

	// Fetch retrieves one message body with its decoded HTML and sender.
	Fetch(ctx context.Context, id string) (*domain.MessageBody, error)

	// MarkRead clears the unread flag. Failure here is retryable and
	// never loses already-enqueued work.
	MarkRead(ctx context.Context, id string) error

	// Close releases the mailbox client and stops background credential
	// refresh.
	Close() error
}
