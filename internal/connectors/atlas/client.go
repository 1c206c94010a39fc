package atlas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// DefaultTimeout is the per-request HTTP timeout.
const DefaultTimeout = 60 * time.Second

// Config holds ATLAS transient server client configuration.
type Config struct {
	// URL is the transient web server API base.
	URL string
	// Token is the API token sent on every request.
	Token string
	// Timeout overrides the per-request timeout.
	Timeout time.Duration
}

// Client talks to the ATLAS transient web server. Authentication is a static
// token in the Authorization header.
type Client struct {
	url   string
	token string
	httpc *http.Client
}

// NewClient creates an ATLAS client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:   strings.TrimRight(cfg.URL, "/"),
		token: cfg.Token,
		httpc: &http.Client{Timeout: timeout},
	}
}

// coneReply is the answer to a nearest-match cone search. Object is the
// internal ATLAS id of the nearest source, zero when nothing lies inside the
// radius.
type coneReply struct {
	Object     int64   `json:"object"`
	Separation float64 `json:"separation_arcsec"`
}

// sourceData is one entry of a single-source data reply.
type sourceData struct {
	Object struct {
		ID          int64   `json:"id"`
		Designation *string `json:"atlas_designation"`
	} `json:"object"`
	Sherlock []struct {
		Z *float64 `json:"z"`
	} `json:"sherlock_crossmatches"`
	LC []lcRow `json:"lc"`
}

// lcRow is one detection. ExpName encodes the telescope unit in its first
// three characters, e.g. "02a58852o0423c".
type lcRow struct {
	MJD     float64 `json:"mjd"`
	Mag     float64 `json:"mag"`
	MagErr  float64 `json:"magerr"`
	Mag5Sig float64 `json:"mag5sig"`
	Filter  string  `json:"filter"`
	ExpName string  `json:"expname"`
}

// ConeSearch finds the nearest ATLAS source to the given position. Returns
// (0, nil) when no source lies within radius arcseconds.
func (c *Client) ConeSearch(ctx context.Context, ra, dec, radius float64) (int64, error) {
	body, err := c.post(ctx, "/cone/", map[string]any{
		"ra":          ra,
		"dec":         dec,
		"radius":      radius,
		"requestType": "nearest",
	})
	if err != nil {
		return 0, err
	}

	var reply coneReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return 0, fmt.Errorf("%w: atlas cone reply: %w", domain.ErrMalformedResponse, err)
	}
	return reply.Object, nil
}

// GetSource fetches the metadata, sherlock crossmatches and detection
// lightcurve of one ATLAS source by internal id.
func (c *Client) GetSource(ctx context.Context, atlasID int64) (*sourceData, error) {
	body, err := c.post(ctx, "/objects/", map[string]any{
		"objects": fmt.Sprintf("%d", atlasID),
	})
	if err != nil {
		return nil, err
	}

	var reply []sourceData
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: atlas objects reply: %w", domain.ErrMalformedResponse, err)
	}
	if len(reply) == 0 {
		return nil, nil
	}
	return &reply[0], nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: atlas %s: %w", domain.ErrTransientFailure, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: atlas %s body: %w", domain.ErrTransientFailure, path, err)
	}
	return body, nil
}

// classifyStatus maps an HTTP status to the domain failure taxonomy.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK || code == http.StatusCreated:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: atlas status %d", domain.ErrAuthExpired, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: atlas status %d", domain.ErrTransientFailure, code)
	default:
		return fmt.Errorf("%w: atlas status %d", domain.ErrMalformedResponse, code)
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}
