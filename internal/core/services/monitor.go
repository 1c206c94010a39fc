package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
	"github.com/tarxiv/tarxiv/internal/core/ports/driving"
	"github.com/tarxiv/tarxiv/internal/logger"
)

// Monitor defaults.
const (
	DefaultPollInterval = 5 * time.Second
	// DefaultQueueSize bounds the notice queue. Enqueue blocks when full,
	// which backpressures polling during message bursts instead of
	// growing without bound.
	DefaultQueueSize = 256
)

// Ensure NoticeMonitor implements the interface.
var _ driving.Monitor = (*NoticeMonitor)(nil)

// MonitorConfig configures the notice polling loop.
type MonitorConfig struct {
	// Label is the mailbox label to poll, e.g. "INBOX".
	Label string
	// Sender is the expected notifier address. Messages from anyone else
	// yield an empty candidate list and are marked read without enqueue.
	Sender string
	// PollInterval is the fixed cadence of the IDLE state.
	PollInterval time.Duration
	// QueueSize bounds the internal notice queue.
	QueueSize int
}

// NoticeMonitor polls the mailbox capability for unread notices, extracts
// candidate transient names and enqueues them for ingestion. It is the sole
// producer into the notice queue.
//
// The loop walks IDLE -> FETCHING -> PARSING -> ENQUEUING -> MARK_READ and
// back. Enqueue strictly precedes mark-read: a crash in between replays the
// message on restart, which is safe because ingestion upserts by name.
type NoticeMonitor struct {
	mailbox driven.Mailbox
	cfg     MonitorConfig
	notices chan domain.Notice

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
}

// NewNoticeMonitor creates a monitor over the given mailbox.
func NewNoticeMonitor(mailbox driven.Mailbox, cfg MonitorConfig) *NoticeMonitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Label == "" {
		cfg.Label = "INBOX"
	}
	return &NoticeMonitor{
		mailbox: mailbox,
		cfg:     cfg,
		notices: make(chan domain.Notice, cfg.QueueSize),
	}
}

// Notices returns the queue the pipeline consumes from. Closed when the
// monitor stops.
func (m *NoticeMonitor) Notices() <-chan domain.Notice {
	return m.notices
}

// Stop requests a cooperative shutdown. The in-flight cycle completes before
// the loop exits.
func (m *NoticeMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if !m.running {
		return
	}
	m.running = false
	close(m.stopCh)
}

// Start runs the polling loop. It blocks until the context is cancelled or
// Stop is called, returning nil, or until credentials become fatally
// invalid, returning domain.ErrFatalAuth. A monitor never restarts: once
// stopped, Start returns domain.ErrMonitorClosed.
func (m *NoticeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return domain.ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	// The notice channel closes exactly once, whatever ends the loop; a
	// stopped monitor never starts again.
	defer func() {
		m.mu.Lock()
		m.running = false
		m.stopped = true
		m.mu.Unlock()
		close(m.notices)
	}()

	retry := backoff.NewExponentialBackOff()
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	logger.Info("notice monitor started (label=%s poll=%s)", m.cfg.Label, m.cfg.PollInterval)

	// Expired credentials get one refresh-and-retry cycle: the mailbox
	// refreshes its token on the next call, so a second expiry in a row
	// means refreshing did not help and the monitor halts.
	authExpired := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stopCh:
			return nil
		case <-ticker.C:
			err := m.cycle(ctx)
			switch {
			case err == nil:
				retry.Reset()
				authExpired = false
			case errors.Is(err, domain.ErrFatalAuth):
				logger.Error("notice monitor halting: %v", err)
				return err
			case errors.Is(err, domain.ErrAuthExpired) && authExpired:
				err = fmt.Errorf("%w: credentials still expired after refresh and retry: %w",
					domain.ErrFatalAuth, err)
				logger.Error("notice monitor halting: %v", err)
				return err
			default:
				if errors.Is(err, domain.ErrAuthExpired) {
					authExpired = true
				}
				// ERROR_RETRYABLE: back off, then return to FETCHING.
				wait := retry.NextBackOff()
				logger.Warn("notice fetch failed, retrying in %s: %v", wait, err)
				select {
				case <-ctx.Done():
					return nil
				case <-stopCh:
					return nil
				case <-time.After(wait):
				}
			}
		}
	}
}

// cycle runs one FETCHING -> ... -> MARK_READ pass over all unread messages.
func (m *NoticeMonitor) cycle(ctx context.Context) error {
	refs, err := m.mailbox.ListUnread(ctx, m.cfg.Label)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	logger.Debug("processing %d unread messages", len(refs))

	for _, ref := range refs {
		if err := m.processMessage(ctx, ref.ID); err != nil {
			if errors.Is(err, domain.ErrFatalAuth) || errors.Is(err, domain.ErrAuthExpired) || ctx.Err() != nil {
				return err
			}
			// Message stays unread and is retried next poll.
			logger.Warn("message %s not processed: %v", ref.ID, err)
		}
	}
	return nil
}

// processMessage parses one message, enqueues its candidates and only then
// marks the message read.
func (m *NoticeMonitor) processMessage(ctx context.Context, id string) error {
	body, err := m.mailbox.Fetch(ctx, id)
	if err != nil {
		return err
	}

	names := m.parse(body)
	if len(names) > 0 {
		notice := domain.Notice{MessageID: id, Names: names}
		select {
		case m.notices <- notice:
		case <-ctx.Done():
			// Not enqueued, not marked read: replayed on restart.
			return ctx.Err()
		}
		logger.Debug("enqueued %d candidates from message %s", len(names), id)
	}

	if err := m.mailbox.MarkRead(ctx, id); err != nil {
		// The work is already enqueued; failing to clear the flag only
		// means a duplicate (idempotent) ingestion later.
		logger.Warn("mark read %s failed: %v", id, err)
	}
	return nil
}

// parse extracts deduplicated candidate names from a message. A sender that
// does not match the expected notifier yields an empty list, not an error.
func (m *NoticeMonitor) parse(body *domain.MessageBody) []string {
	if m.cfg.Sender != "" && !containsAddress(body.From, m.cfg.Sender) {
		logger.Debug("message %s from %q ignored", body.ID, body.From)
		return nil
	}

	var names []string
	seen := make(map[string]struct{})
	for _, name := range domain.ExtractCandidates(body.HTML) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func containsAddress(header, address string) bool {
	return strings.Contains(header, address)
}
