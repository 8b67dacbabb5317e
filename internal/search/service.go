package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/querydesk/querydesk/internal/metrics"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/session"
	"github.com/querydesk/querydesk/pkg/logger"
)

// Route binds one search path segment to its upstream parameter, history
// kind, and gating feature. The id and aadhar segments share a history kind
// but query different primary-index parameters.
type Route struct {
	Kind    models.SearchKind
	Param   string // primary-index query parameter; "" for non-lookup kinds
	Feature string
}

var routesByName = map[string]Route{
	"mobile":          {Kind: models.SearchKindMobile, Param: "mobile", Feature: models.FeatureMobile},
	"email":           {Kind: models.SearchKindEmail, Param: "email", Feature: models.FeatureEmail},
	"id":              {Kind: models.SearchKindNationalID, Param: "id", Feature: models.FeatureNationalIDA},
	"aadhar":          {Kind: models.SearchKindNationalID, Param: "aadhar", Feature: models.FeatureNationalIDA},
	"pan":             {Kind: models.SearchKindAlt, Param: "pan", Feature: models.FeatureNationalIDB},
	"vehicle-info":    {Kind: models.SearchKindVehicleInfo, Feature: models.FeatureVehicleInfo},
	"vehicle-challan": {Kind: models.SearchKindVehicleChallan, Feature: models.FeatureVehicleChallan},
	"ip":              {Kind: models.SearchKindIP, Feature: models.FeatureIP},
}

// RouteByName resolves a search path segment.
func RouteByName(name string) (Route, bool) {
	route, ok := routesByName[name]
	return route, ok
}

// QueryError is a client-side search failure (malformed input or a
// provider-reported verdict) carrying the user-visible message. Handlers
// render it as a 400.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

// Vehicle upstream failures are never detailed to the client.
const vehicleFailureMessage = "Service temporarily unavailable, contact developer"

// AccountReader is the slice of the account repository the search layer
// needs for feature gating.
type AccountReader interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// HistoryWriter appends completed searches to the audit log.
type HistoryWriter interface {
	Append(ctx context.Context, record *models.SearchRecord) (*models.SearchRecord, error)
}

// Service proxies search queries to the external lookup APIs, normalizes
// their responses, enforces per-account feature grants, and records every
// completed search.
type Service struct {
	lookup   *LookupClient
	vehicle  *VehicleClient
	geoip    *GeoIPClient
	accounts AccountReader
	history  HistoryWriter
	variant  models.Variant
	audit    *logger.AuditLogger
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(
	lookup *LookupClient,
	vehicle *VehicleClient,
	geoip *GeoIPClient,
	accounts AccountReader,
	history HistoryWriter,
	variant models.Variant,
	audit *logger.AuditLogger,
	m *metrics.Metrics,
	log *slog.Logger,
) *Service {
	return &Service{
		lookup:   lookup,
		vehicle:  vehicle,
		geoip:    geoip,
		accounts: accounts,
		history:  history,
		variant:  variant,
		audit:    audit,
		metrics:  m,
		logger:   log,
	}
}

// Lookup runs one search for the authenticated actor: feature gate, upstream
// call(s), response normalization, then a history append for completed
// searches. Vehicle kinds never return transport errors; their failures come
// back as StateUpstreamError results.
func (s *Service) Lookup(ctx context.Context, route Route, query string, actor session.Identity) (Result, error) {
	kind := string(route.Kind)

	if err := s.authorize(ctx, route, actor); err != nil {
		s.metrics.IncSearch(kind, "denied")
		return Result{}, err
	}

	start := time.Now()
	result, err := s.dispatch(ctx, route, query)
	s.metrics.ObserveUpstream(kind, time.Since(start))

	if err != nil {
		s.metrics.IncSearch(kind, outcomeForError(err))
		s.audit.LogSearch(kind, actor.ID, actor.Role, 0, false)
		return Result{}, err
	}

	switch result.State {
	case StateOK:
		s.metrics.IncSearch(kind, "ok")
	case StateEmpty:
		s.metrics.IncSearch(kind, "empty")
	case StateUpstreamError:
		s.metrics.IncSearch(kind, "upstream_error")
		s.audit.LogSearch(kind, actor.ID, actor.Role, 0, false)
		return result, nil
	}

	record := &models.SearchRecord{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Kind:        route.Kind,
		Query:       query,
		ResultCount: result.Count,
	}
	if _, err := s.history.Append(ctx, record); err != nil {
		s.logger.Error("failed to append search history",
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		return Result{}, models.ErrInternalServer
	}

	s.audit.LogSearch(kind, actor.ID, actor.Role, result.Count, true)
	return result, nil
}

// Features returns the actor's effective search features. Privileged roles
// and featureless deployments see the whole vocabulary.
func (s *Service) Features(ctx context.Context, actor session.Identity) ([]string, error) {
	if actor.Role == s.variant.PrivilegedRole || !s.variant.HasFeatures {
		return append([]string(nil), models.AllFeatures...), nil
	}

	account, err := s.accounts.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load account for feature list", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if account.Status != models.AccountStatusActive {
		return nil, models.ErrAccountInactive
	}

	return account.EffectiveFeatures(), nil
}

// authorize enforces the route's feature grant for managed accounts. The
// grant is read live so a revocation takes effect on the next search, not
// the next login.
func (s *Service) authorize(ctx context.Context, route Route, actor session.Identity) error {
	if actor.Role == s.variant.PrivilegedRole || !s.variant.HasFeatures {
		return nil
	}

	account, err := s.accounts.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Account deleted while its session was still live
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load account for feature gate", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if account.Status != models.AccountStatusActive {
		// Deactivation cuts off searches immediately, not at session expiry
		return models.ErrAccountInactive
	}

	if !account.HasFeature(route.Feature) {
		return models.ErrFeatureDisabled
	}

	return nil
}

func (s *Service) dispatch(ctx context.Context, route Route, query string) (Result, error) {
	switch route.Kind {
	case models.SearchKindMobile:
		return s.lookupMobile(ctx, query)
	case models.SearchKindEmail, models.SearchKindNationalID, models.SearchKindAlt:
		return s.lookupSingle(ctx, route.Param, query)
	case models.SearchKindVehicleInfo:
		return s.lookupVehicle(ctx, "vehicle_info", query)
	case models.SearchKindVehicleChallan:
		return s.lookupVehicle(ctx, "challan", query)
	case models.SearchKindIP:
		return s.lookupIP(ctx, query)
	default:
		return Result{}, models.ErrBadRequest
	}
}

// lookupMobile queries the primary and alternate indexes concurrently.
// Either call may fail without failing the other; results merge with
// structural deduplication.
func (s *Service) lookupMobile(ctx context.Context, query string) (Result, error) {
	type fetch struct {
		records []json.RawMessage
		err     error
	}

	primaryCh := make(chan fetch, 1)
	altCh := make(chan fetch, 1)

	go func() {
		records, err := s.lookup.Query(ctx, "mobile", query)
		primaryCh <- fetch{records, err}
	}()
	go func() {
		records, err := s.lookup.QueryAlt(ctx, query)
		altCh <- fetch{records, err}
	}()

	primary := <-primaryCh
	alt := <-altCh

	if primary.err != nil && alt.err != nil {
		return Result{}, primary.err
	}
	if primary.err != nil {
		s.logger.Warn("primary mobile index failed", slog.Any("error", primary.err))
	}
	if alt.err != nil {
		s.logger.Warn("alternate mobile index failed", slog.Any("error", alt.err))
	}

	merged := mergeRecords(primary.records, alt.records)
	if len(merged) == 0 {
		return Empty(), nil
	}
	return OK(merged, len(merged)), nil
}

func (s *Service) lookupSingle(ctx context.Context, param, query string) (Result, error) {
	records, err := s.lookup.Query(ctx, param, query)
	if err != nil {
		return Result{}, err
	}

	if len(records) == 0 {
		return Empty(), nil
	}
	return OK(records, len(records)), nil
}

// lookupVehicle calls the vehicle API and filters the payload to the field
// allowlist. Transport errors and unusable payloads both collapse into the
// generic embedded failure; provider details never reach the client.
func (s *Service) lookupVehicle(ctx context.Context, service, vehicleNumber string) (Result, error) {
	raw, err := s.vehicle.Fetch(ctx, service, vehicleNumber)
	if err != nil {
		s.logger.Warn("vehicle lookup failed",
			slog.String("service", service),
			slog.Any("error", err),
		)
		return UpstreamError(vehicleFailureMessage), nil
	}

	filtered, count, ok := filterVehiclePayload(raw, service, vehicleNumber)
	if !ok {
		return UpstreamError(vehicleFailureMessage), nil
	}

	return Result{State: StateOK, Records: []json.RawMessage{filtered}, Count: count}, nil
}

func (s *Service) lookupIP(ctx context.Context, query string) (Result, error) {
	if net.ParseIP(strings.TrimSpace(query)) == nil {
		return Result{}, &QueryError{Message: "Invalid IP address"}
	}

	raw, err := s.geoip.Lookup(ctx, strings.TrimSpace(query))
	if err != nil {
		return Result{}, err
	}

	var probe struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Result{}, fmt.Errorf("%w: decode geolocation response: %v", models.ErrUpstreamFailure, err)
	}

	if probe.Status == "fail" {
		message := probe.Message
		if message == "" {
			message = "IP lookup failed"
		}
		return Result{}, &QueryError{Message: message}
	}

	return Result{State: StateOK, Records: []json.RawMessage{raw}, Count: 1}, nil
}

// filterVehiclePayload reduces a raw provider payload to the allowlist:
// the echoed vehicle number plus, for challan lookups, the challan block,
// or for info lookups the vehicle and puc blocks. Blocks count only when
// their embedded code reports success; every other provider field
// (credits, telemetry, branding) is dropped.
func filterVehiclePayload(raw json.RawMessage, service, vehicleNumber string) (json.RawMessage, int, bool) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 0, false
	}

	filtered := map[string]json.RawMessage{}
	count := 0

	switch service {
	case "challan":
		challan, ok := payload["challan"]
		if !ok || embeddedCode(challan) != 200 {
			return nil, 0, false
		}
		filtered["challan"] = challan
		count = challanCount(challan)
	default:
		vehicle, ok := payload["vehicle"]
		if !ok || embeddedCode(vehicle) != 200 {
			return nil, 0, false
		}
		filtered["vehicle"] = vehicle
		if puc, ok := payload["puc"]; ok {
			filtered["puc"] = puc
		}
		count = 1
	}

	number, err := json.Marshal(vehicleNumber)
	if err != nil {
		return nil, 0, false
	}
	filtered["vehicle_number"] = number

	out, err := json.Marshal(filtered)
	if err != nil {
		return nil, 0, false
	}
	return out, count, true
}

// embeddedCode reads the provider's per-block status code.
func embeddedCode(block json.RawMessage) int {
	var probe struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(block, &probe); err != nil {
		return 0
	}
	return probe.Code
}

// challanCount counts the entries of a challan block's data list. A block
// without a list counts as one hit.
func challanCount(block json.RawMessage) int {
	var probe struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(block, &probe); err != nil || probe.Data == nil {
		return 1
	}
	return len(probe.Data)
}

func outcomeForError(err error) string {
	var queryErr *QueryError
	switch {
	case errors.Is(err, models.ErrUpstreamTimeout):
		return "timeout"
	case errors.As(err, &queryErr):
		return "invalid"
	default:
		return "upstream_error"
	}
}
