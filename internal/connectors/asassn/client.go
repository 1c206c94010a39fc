package asassn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// DefaultTimeout is the per-request HTTP timeout. SkyPatrol lightcurve
// downloads cover the full survey history and can run long.
const DefaultTimeout = 120 * time.Second

// Config holds SkyPatrol client configuration.
type Config struct {
	// URL is the SkyPatrol API base.
	URL string
	// Timeout overrides the per-request timeout.
	Timeout time.Duration
}

// Client talks to the ASAS-SN SkyPatrol API. Source lookup runs as an ADQL
// query against the master list; lightcurves are downloaded per id.
type Client struct {
	url   string
	httpc *http.Client
}

// NewClient creates a SkyPatrol client.
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

// catalogRow is one master-list source ordered by angular distance.
type catalogRow struct {
	ID      int64   `json:"asas_sn_id"`
	RADeg   float64 `json:"ra_deg"`
	DecDeg  float64 `json:"dec_deg"`
	AngDist float64 `json:"angular_dist"`
}

// lcRow is one photometric epoch of a SkyPatrol lightcurve. Rows with
// quality grade "B" come from bad images, mag_err >= 99 marks a
// non-detection.
type lcRow struct {
	JD      float64 `json:"jd"`
	Mag     float64 `json:"mag"`
	MagErr  float64 `json:"mag_err"`
	Limit   float64 `json:"limit"`
	Filter  string  `json:"phot_filter"`
	Camera  string  `json:"camera"`
	Quality string  `json:"quality"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// coneQuery builds the master-list ADQL for a cone search ordered nearest
// first.
func coneQuery(ra, dec, radius float64) string {
	q := fmt.Sprintf(`WITH sources AS
		(
			SELECT
				asas_sn_id,
				ra_deg,
				dec_deg,
				DISTANCE(ra_deg, dec_deg, %f, %f) AS angular_dist
			FROM master_list
		)
		SELECT *
		FROM sources
		WHERE angular_dist <= ARCSEC(%f)
		ORDER BY angular_dist ASC`, ra, dec, radius)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(q, " "))
}

// ConeSearch returns the master-list sources within radius arcseconds of the
// position, nearest first. An empty slice means a confirmed miss.
func (c *Client) ConeSearch(ctx context.Context, ra, dec, radius float64) ([]catalogRow, error) {
	body, err := c.post(ctx, "/lookup/adql", map[string]any{
		"query":    coneQuery(ra, dec, radius),
		"download": true,
	})
	if err != nil {
		return nil, err
	}

	var reply struct {
		CatalogInfo []catalogRow `json:"catalog_info"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: skypatrol adql reply: %w", domain.ErrMalformedResponse, err)
	}
	return reply.CatalogInfo, nil
}

// GetLightcurve downloads the full lightcurve of one source.
func (c *Client) GetLightcurve(ctx context.Context, id int64) ([]lcRow, error) {
	body, err := c.post(ctx, "/lightcurves", map[string]any{
		"asas_sn_id": id,
	})
	if err != nil {
		return nil, err
	}

	var reply struct {
		Data []lcRow `json:"data"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("%w: skypatrol lightcurve reply: %w", domain.ErrMalformedResponse, err)
	}
	return reply.Data, nil
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
		return nil, fmt.Errorf("%w: skypatrol %s: %w", domain.ErrTransientFailure, path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: skypatrol %s body: %w", domain.ErrTransientFailure, path, err)
	}
	return body, nil
}

// classifyStatus maps an HTTP status to the domain failure taxonomy.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: skypatrol status %d", domain.ErrTransientFailure, code)
	default:
		return fmt.Errorf("%w: skypatrol status %d", domain.ErrMalformedResponse, code)
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}
