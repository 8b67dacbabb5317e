package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/querydesk/querydesk/internal/models"
)

// LookupClient talks to the person-lookup API: a primary index queried by a
// kind-specific parameter, plus an alternate mobile index merged into
// mobile searches.
type LookupClient struct {
	baseURL    string
	altBaseURL string
	client     *http.Client
	timeout    time.Duration
}

func NewLookupClient(baseURL, altBaseURL string, timeout time.Duration) *LookupClient {
	return &LookupClient{
		baseURL:    baseURL,
		altBaseURL: altBaseURL,
		client:     &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Query hits the primary index with one kind-specific parameter
// (mobile=, email=, id=, aadhar=, pan=).
func (c *LookupClient) Query(ctx context.Context, param, value string) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s?%s=%s", c.baseURL, url.QueryEscape(param), url.QueryEscape(value))

	raw, err := fetchJSON(ctx, c.client, c.timeout, endpoint)
	if err != nil {
		return nil, err
	}
	return normalizeRecords(raw), nil
}

// QueryAlt hits the alternate mobile index.
func (c *LookupClient) QueryAlt(ctx context.Context, value string) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s?mobile=%s", c.altBaseURL, url.QueryEscape(value))

	raw, err := fetchJSON(ctx, c.client, c.timeout, endpoint)
	if err != nil {
		return nil, err
	}
	return normalizeRecords(raw), nil
}

// VehicleClient talks to the vehicle registry API, keyed by an API key and
// a per-call service selector ("vehicle_info" or "challan").
type VehicleClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

func NewVehicleClient(baseURL, apiKey string, timeout time.Duration) *VehicleClient {
	return &VehicleClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch returns the raw provider payload for one vehicle number. The caller
// filters it; nothing provider-specific leaves this package unfiltered.
func (c *VehicleClient) Fetch(ctx context.Context, service, vehicleNumber string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s?key=%s&service=%s&vehicle_number=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(service), url.QueryEscape(vehicleNumber))

	return fetchJSON(ctx, c.client, c.timeout, endpoint)
}

// GeoIPClient talks to the IP geolocation API. No key required.
type GeoIPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewGeoIPClient(baseURL string, timeout time.Duration) *GeoIPClient {
	return &GeoIPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Lookup returns the raw geolocation payload for one IP literal. The
// provider reports its own failures in-band via a status field.
func (c *GeoIPClient) Lookup(ctx context.Context, ip string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(ip))

	return fetchJSON(ctx, c.client, c.timeout, endpoint)
}

// fetchJSON performs one bounded GET and returns the raw JSON body.
// Deadline hits map to ErrUpstreamTimeout, everything else transport-level
// to ErrUpstreamFailure, so callers can render 504 vs 500.
func fetchJSON(ctx context.Context, client *http.Client, timeout time.Duration, endpoint string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", models.ErrUpstreamFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", models.ErrUpstreamFailure, resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", models.ErrUpstreamFailure, err)
	}

	return raw, nil
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrUpstreamTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return models.ErrUpstreamTimeout
	}

	return fmt.Errorf("%w: %v", models.ErrUpstreamFailure, err)
}
