package tns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateDelay is the enforced pause before every TNS call. The
	// server imposes an external rate limit; exceeding it serves 429s
	// followed by temporary bans.
	DefaultRateDelay = 5 * time.Second
)

// Config holds TNS client configuration.
type Config struct {
	// Site is the TNS base URL, e.g. "https://www.wis-tns.org".
	Site string
	// APIKey is the bot api key.
	APIKey string
	// BotID, BotType and BotName form the user-agent marker TNS requires
	// on every API call.
	BotID   int
	BotType string
	BotName string
	// RateDelay overrides the pause between calls.
	RateDelay time.Duration
	// Timeout overrides the per-request timeout.
	Timeout time.Duration
}

// Client is a rate-limited TNS API client. It owns its HTTP client; create
// on construct, release with Close.
type Client struct {
	site    string
	apiKey  string
	marker  string
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewClient creates a TNS client. The marker header encodes the registered
// bot identity as TNS requires: tns_marker{"tns_id":...,"type":...,"name":...}.
func NewClient(cfg Config) *Client {
	delay := cfg.RateDelay
	if delay <= 0 {
		delay = DefaultRateDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	markerPayload, _ := json.Marshal(map[string]any{
		"tns_id": cfg.BotID,
		"type":   cfg.BotType,
		"name":   cfg.BotName,
	})

	return &Client{
		site:    strings.TrimRight(cfg.Site, "/"),
		apiKey:  cfg.APIKey,
		marker:  "tns_marker" + string(markerPayload),
		httpc:   &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// objectRequest is the JSON body of a get/object call. Field order matters
// to nobody but the TNS request log, but we keep the documented order.
type objectRequest struct {
	ObjID      string `json:"objid"`
	ObjName    string `json:"objname"`
	Photometry string `json:"photometry"`
	Spectra    string `json:"spectra"`
}

// objectReply is the subset of the TNS object payload tarxiv consumes.
type objectReply struct {
	ObjName       string   `json:"objname"`
	RADeg         float64  `json:"radeg"`
	DecDeg        float64  `json:"decdeg"`
	RA            string   `json:"ra"`
	Dec           string   `json:"dec"`
	NamePrefix    string   `json:"name_prefix"`
	ObjectType    named    `json:"object_type"`
	DiscoveryDate string   `json:"discoverydate"`
	Reporters     group    `json:"reporting_group"`
	DataSource    group    `json:"discovery_data_source"`
	Redshift      *float64 `json:"redshift"`
	HostName      *string  `json:"hostname"`
}

type named struct {
	Name string `json:"name"`
}

type group struct {
	GroupName string `json:"group_name"`
}

type objectEnvelope struct {
	IDCode int             `json:"id_code"`
	Data   json.RawMessage `json:"data"`
}

// GetObject fetches one object by TNS name. Waits out the rate limiter
// before issuing the request. Returns nil on a confirmed no-match.
func (c *Client) GetObject(ctx context.Context, objname string) (*objectReply, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransientFailure, err)
	}

	payload, err := json.Marshal(objectRequest{
		ObjName:    objname,
		Photometry: "0",
		Spectra:    "0",
	})
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("data", string(payload))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.site+"/api/get/object", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.marker)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tns get object: %w", domain.ErrTransientFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tns reply: %w", domain.ErrTransientFailure, err)
	}

	var envelope objectEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: tns reply: %w", domain.ErrMalformedResponse, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, nil
	}

	var reply objectReply
	if err := json.Unmarshal(envelope.Data, &reply); err != nil {
		return nil, fmt.Errorf("%w: tns object payload: %w", domain.ErrMalformedResponse, err)
	}
	if reply.ObjName == "" {
		// TNS answers 200 with an empty object for unknown names.
		return nil, nil
	}
	return &reply, nil
}

// classifyStatus maps an HTTP status to the domain failure taxonomy.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: tns status %d", domain.ErrAuthExpired, code)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: tns status %d", domain.ErrTransientFailure, code)
	default:
		return fmt.Errorf("%w: tns status %d", domain.ErrMalformedResponse, code)
	}
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.httpc.CloseIdleConnections()
	return nil
}
