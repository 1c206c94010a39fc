package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// loadOAuthConfig reads the installed-app client secret file and builds the
// OAuth config for the modify scope, the narrowest scope that allows
// clearing the unread label.
func loadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading gmail credentials: %w", domain.ErrFatalAuth, err)
	}
	cfg, err := google.ConfigFromJSON(data, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing gmail credentials: %w", domain.ErrFatalAuth, err)
	}
	return cfg, nil
}

// loadToken reads a previously authorised token from disk.
func loadToken(tokenFile string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: no gmail token at %s, run the auth flow first: %w",
			domain.ErrFatalAuth, tokenFile, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: gmail token file: %w", domain.ErrFatalAuth, err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: gmail token has no refresh token", domain.ErrFatalAuth)
	}
	return &tok, nil
}

// persistToken writes the token back to disk so the next start skips the
// interactive flow.
func persistToken(tokenFile string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(tokenFile, data, 0o600)
}

// refreshToken exchanges the refresh token for a fresh access token. A
// revoked or expired grant is fatal; anything else is retryable.
func refreshToken(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}
	return fresh, nil
}

// classifyTokenError maps an OAuth token exchange failure to the domain
// failure taxonomy. Google answers invalid_grant with a 4xx status when the
// refresh token has been revoked.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 &&
			re.Response.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: gmail token refresh: %w", domain.ErrFatalAuth, err)
		}
	}
	return fmt.Errorf("%w: gmail token refresh: %w", domain.ErrTransientFailure, err)
}
