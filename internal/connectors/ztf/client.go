package ztf

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

// DefaultTimeout is the per-request HTTP timeout. Fink object queries return
// the full photometric history and can be slow for well-sampled objects.
const DefaultTimeout = 60 * time.Second

// Config holds Fink client configuration.
type Config struct {
	// URL is the Fink API base, e.g. "https://api.fink-portal.org".
	URL string
	// Timeout overrides the per-request timeout.
	Timeout time.Duration
}

// Client talks to the Fink broker REST API. Fink requires no authentication
// and no rate limiting.
type Client struct {
	url   string
	httpc *http.Client
}

// NewClient creates a Fink client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:   strings.TrimRight(cfg.URL, "/"),
		httpc: &http.Client{Timeout: timeout},
	}
}

// coneMatch is one row of a conesearch reply, restricted to the object id
// column by the request.
type coneMatch struct {
	ObjectID string `json:"i:objectId"`
}

// objectRow is one photometric epoch of an objects reply. Fink repeats the
// crossmatch columns (d: prefix) on every row; only the first row's values
// are consumed.
type objectRow struct {
	JD            float64 `json:"i:jd"`
	MagPSF        float64 `json:"i:magpsf"`
	SigmaPSF      float64 `json:"i:sigmapsf"`
	FID           int     `json:"i:fid"`
	DiffMagLim    float64 `json:"i:diffmaglim"`
	Mangrove2MASS string  `json:"d:mangrove_2MASS_name"`
	MangroveLEDA  string  `json:"d:mangrove_HyperLEDA_name"`
}

// ConeSearch returns the ZTF object ids within radius arcseconds of the
// given position, nearest first. An empty slice means a confirmed miss.
func (c *Client) ConeSearch(ctx context.Context, ra, dec, radius float64) ([]string, error) {
	body, err := c.post(ctx, "/api/v1/conesearch", map[string]any{
		"ra":      ra,
		"dec":     dec,
		"radius":  radius,
		"columns": "i:objectId",
	})
	if err != nil {
		return nil, err
	}
	// Fink has been observed to answer 200 with a zero-length body for
	// positions it cannot resolve; treat that as a miss, not an error.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var matches []coneMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("%w: fink conesearch reply: %w", domain.ErrMalformedResponse, err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ObjectID)
	}
	return ids, nil
}

// GetObject returns the full photometric history of one ZTF object. A nil
// slice means Fink does not know the id.
func (c *Client) GetObject(ctx context.Context, objectID string) ([]objectRow, error) {
	body, err := c.post(ctx, "/api/v1/objects", map[string]any{
		"objectId":      objectID,
		"output-format": "json",
	})
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var rows []objectRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: fink objects reply: %w", domain.ErrMalformedResponse, err)
	}
	return rows, nil
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

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fink %s: %w", domain.ErrTransientFailure, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: fink %s body: %w", domain.ErrTransientFailure, path, err)
	}
	return body, nil
}

// classifyStatus maps an HTTP status to the domain failure taxonomy.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: fink status %d", domain.ErrTransientFailure, code)
	default:
		return fmt.Errorf("%w: fink status %d", domain.ErrMalformedResponse, code)
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}
