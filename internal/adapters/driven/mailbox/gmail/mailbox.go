// Package gmail implements the mailbox capability over the Gmail API.
//
// Credentials are the standard installed-app OAuth pair: a client secret
// file plus a token file written by a prior interactive authorisation. A
// background goroutine refreshes the access token on a fixed interval and
// persists it; refresh holds the same lock as every API call, so a fetch
// never runs against a token mid-renewal. An expired access token gets one
// inline refresh-and-retry per call; a revoked refresh token latches the
// mailbox as fatally unauthorised.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
	"github.com/tarxiv/tarxiv/internal/logger"
)

// DefaultRefreshInterval is how often the access token is renewed.
const DefaultRefreshInterval = 30 * time.Minute

// Ensure Mailbox implements the interface.
var _ driven.Mailbox = (*Mailbox)(nil)

// Config holds Gmail mailbox configuration.
type Config struct {
	// CredentialsFile is the OAuth installed-app client secret JSON.
	CredentialsFile string
	// TokenFile stores the authorised token between runs.
	TokenFile string
	// RefreshInterval overrides the token refresh cadence.
	RefreshInterval time.Duration
}

// Mailbox is a Gmail-backed mailbox. The mutex serialises API calls with
// token refresh. Once the credentials fail fatally the mailbox latches:
// every later call returns the stored ErrFatalAuth without touching the API.
type Mailbox struct {
	cfg      Config
	oauthCfg *oauth2.Config

	newService func(ctx context.Context, tok *oauth2.Token) (*gmailapi.Service, error)

	mu       sync.Mutex
	token    *oauth2.Token
	svc      *gmailapi.Service
	fatalErr error

	stop chan struct{}
	done chan struct{}
}

// NewMailbox authenticates against Gmail with the stored token, refreshing
// it immediately, and starts the background refresh loop. A missing or
// revoked token is ErrFatalAuth: the daemon cannot complete an interactive
// flow.
func NewMailbox(ctx context.Context, cfg Config) (*Mailbox, error) {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	oauthCfg, err := loadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := loadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	// Refresh on start so a stale token fails here, not mid-poll.
	tok, err = refreshToken(ctx, oauthCfg, tok)
	if err != nil {
		return nil, err
	}
	if err := persistToken(cfg.TokenFile, tok); err != nil {
		logger.Warn("gmail: persisting token: %v", err)
	}

	svc, err := newGmailService(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: gmail service: %w", domain.ErrFatalAuth, err)
	}

	m := &Mailbox{
		cfg:        cfg,
		oauthCfg:   oauthCfg,
		newService: newGmailService,
		token:      tok,
		svc:        svc,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go m.refreshLoop()
	return m, nil
}

func newGmailService(ctx context.Context, tok *oauth2.Token) (*gmailapi.Service, error) {
	return gmailapi.NewService(ctx,
		option.WithTokenSource(oauth2.StaticTokenSource(tok)))
}

// refreshLoop renews the token on the configured interval until Close. A
// transient refresh failure is logged and retried next tick; the current
// token keeps serving until then. A fatal failure stops the loop: the
// mailbox is latched and every call fails fast.
func (m *Mailbox) refreshLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.refresh(); err != nil {
				if errors.Is(err, domain.ErrFatalAuth) {
					logger.Error("gmail: token refresh: %v", err)
					return
				}
				logger.Warn("gmail: token refresh: %v", err)
			}
		}
	}
}

// refresh renews the token under the lock, latching the mailbox when the
// refresh token itself has been revoked.
func (m *Mailbox) refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := m.refreshLocked(ctx)
	if err != nil && errors.Is(err, domain.ErrFatalAuth) {
		m.fatalErr = err
	}
	return err
}

// refreshLocked renews the token, rebuilds the service and persists the new
// token. Callers hold mu.
func (m *Mailbox) refreshLocked(ctx context.Context) error {
	tok, err := refreshToken(ctx, m.oauthCfg, m.token)
	if err != nil {
		return err
	}
	svc, err := m.newService(ctx, tok)
	if err != nil {
		return fmt.Errorf("%w: gmail service: %w", domain.ErrFatalAuth, err)
	}
	m.token = tok
	m.svc = svc
	if err := persistToken(m.cfg.TokenFile, tok); err != nil {
		logger.Warn("gmail: persisting token: %v", err)
	}
	logger.Debug("gmail: token refreshed")
	return nil
}

// apiCall runs op under the lock, giving an expired access token exactly one
// refresh-and-retry. A second expiry in a row means refreshing did not help;
// that, like a revoked refresh token, latches the mailbox as fatally
// unauthorised.
func (m *Mailbox) apiCall(ctx context.Context, op func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fatalErr != nil {
		return m.fatalErr
	}
	err := op()
	if !errors.Is(err, domain.ErrAuthExpired) {
		return err
	}

	logger.Info("gmail: access token expired, refreshing")
	if rerr := m.refreshLocked(ctx); rerr != nil {
		if errors.Is(rerr, domain.ErrFatalAuth) {
			m.fatalErr = rerr
		}
		return rerr
	}
	err = op()
	if errors.Is(err, domain.ErrAuthExpired) {
		err = fmt.Errorf("%w: gmail: still unauthorised after token refresh: %w",
			domain.ErrFatalAuth, err)
		m.fatalErr = err
	}
	return err
}

// ListUnread returns references to unread messages under the label.
func (m *Mailbox) ListUnread(ctx context.Context, label string) ([]domain.MessageRef, error) {
	var res *gmailapi.ListMessagesResponse
	err := m.apiCall(ctx, func() error {
		call := m.svc.Users.Messages.List("me").Q("is:unread").Context(ctx)
		if label != "" {
			call = call.LabelIds(label)
		}
		var err error
		res, err = call.Do()
		if err != nil {
			return classifyAPIError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refs := make([]domain.MessageRef, 0, len(res.Messages))
	for _, msg := range res.Messages {
		refs = append(refs, domain.MessageRef{ID: msg.Id})
	}
	return refs, nil
}

// Fetch retrieves one message and decodes its HTML body.
func (m *Mailbox) Fetch(ctx context.Context, id string) (*domain.MessageBody, error) {
	var msg *gmailapi.Message
	err := m.apiCall(ctx, func() error {
		var err error
		msg, err = m.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			return classifyAPIError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if msg.Payload == nil {
		return nil, fmt.Errorf("%w: gmail message %s has no payload", domain.ErrMalformedResponse, id)
	}

	return &domain.MessageBody{
		ID:   id,
		From: headerValue(msg.Payload.Headers, "From"),
		HTML: bodyHTML(msg.Payload),
	}, nil
}

// MarkRead clears the unread label.
func (m *Mailbox) MarkRead(ctx context.Context, id string) error {
	err := m.apiCall(ctx, func() error {
		_, err := m.svc.Users.Messages.Modify("me", id, &gmailapi.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
		if err != nil {
			return classifyAPIError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Debug("gmail: marked %s read", id)
	return nil
}

// Close stops the refresh loop.
func (m *Mailbox) Close() error {
	close(m.stop)
	<-m.done
	return nil
}

// headerValue returns the first header with the given name,
// case-insensitively.
func headerValue(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// bodyHTML returns the decoded text/html body of a message, descending into
// multipart payloads. Falls back to text/plain, then to the top-level body,
// so a malformed notice still yields something parseable.
func bodyHTML(part *gmailapi.MessagePart) string {
	if html := findPart(part, "text/html"); html != "" {
		return html
	}
	if plain := findPart(part, "text/plain"); plain != "" {
		return plain
	}
	if part.Body != nil {
		return decodeBody(part.Body.Data)
	}
	return ""
}

func findPart(part *gmailapi.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != "" {
			return found
		}
	}
	return ""
}

// decodeBody decodes the base64url message data. Gmail omits padding.
func decodeBody(data string) string {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(raw)
}

// classifyAPIError maps a Gmail API failure to the domain failure taxonomy.
func classifyAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: gmail: %w", domain.ErrAuthExpired, err)
		case apiErr.Code == http.StatusForbidden || apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return fmt.Errorf("%w: gmail: %w", domain.ErrTransientFailure, err)
		case apiErr.Code == http.StatusNotFound:
			return fmt.Errorf("%w: gmail: %w", domain.ErrNotFound, err)
		default:
			return fmt.Errorf("%w: gmail: %w", domain.ErrMalformedResponse, err)
		}
	}
	return fmt.Errorf("%w: gmail: %w", domain.ErrTransientFailure, err)
}
