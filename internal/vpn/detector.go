package vpn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Config holds detector settings. An empty APIKey disables the external
// reputation lookup; static blocklist matching still applies.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Detector decides whether a caller IP looks like VPN/proxy/datacenter
// egress. Loopback and private ranges are always exempt. The static
// blocklist is consulted first; unresolved IPs fall through to a cached
// reputation lookup that fails open.
type Detector struct {
	blocklist *Blocklist
	verdicts  *cache.Cache
	client    *http.Client
	baseURL   string
	apiKey    string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDetector creates a detector over the given blocklist. Reputation
// verdicts are cached for cfg.CacheTTL.
func NewDetector(blocklist *Blocklist, cfg Config, logger *slog.Logger) *Detector {
	return &Detector{
		blocklist: blocklist,
		verdicts:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Check reports whether the IP should be blocked and which signal fired
// ("blocklist" or "reputation"). Unparseable IPs are allowed.
func (d *Detector) Check(ctx context.Context, ipStr string) (bool, string) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false, ""
	}

	// Local traffic is never blocked
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return false, ""
	}

	if d.blocklist.Contains(ip) {
		return true, "blocklist"
	}

	if verdict, found := d.verdicts.Get(ipStr); found {
		if verdict.(bool) {
			return true, "reputation"
		}
		return false, ""
	}

	if d.apiKey == "" {
		return false, ""
	}

	flagged, err := d.lookupReputation(ctx, ipStr)
	if err != nil {
		// Reputation lookup is best-effort; failures allow the request
		d.logger.Debug("vpn reputation lookup failed",
			slog.String("ip", ipStr),
			slog.String("error", err.Error()),
		)
		return false, ""
	}

	d.verdicts.Set(ipStr, flagged, cache.DefaultExpiration)
	if flagged {
		return true, "reputation"
	}
	return false, ""
}

// reputationResponse mirrors the security block of the reputation API.
type reputationResponse struct {
	Security struct {
		VPN   bool `json:"vpn"`
		Proxy bool `json:"proxy"`
		Tor   bool `json:"tor"`
		Relay bool `json:"relay"`
	} `json:"security"`
}

func (d *Detector) lookupReputation(ctx context.Context, ip string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s?key=%s", d.baseURL, url.PathEscape(ip), url.QueryEscape(d.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build reputation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("reputation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reputation API returned status %d", resp.StatusCode)
	}

	var body reputationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode reputation response: %w", err)
	}

	sec := body.Security
	return sec.VPN || sec.Proxy || sec.Tor || sec.Relay, nil
}
