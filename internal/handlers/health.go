package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Healthz answers from
// build metadata alone; Readyz consults the system service's dependency
// probes when one is configured.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the dependency-probing system service.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthBuildInfo sets the build metadata reported by the probes.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthClock overrides the time source, used by tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type healthPayload struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	Timestamp   string                        `json:"timestamp"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	Details     []string                      `json:"details"`
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := healthPayload{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).String(),
		Timestamp:   now.Format(time.RFC3339),
		Details:     []string{},
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

// Readyz reports dependency readiness. Responds 503 when any probe is not ok.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()

	if h.system == nil {
		payload := healthPayload{
			Status:    domain.HealthStatusOK,
			Timestamp: now.Format(time.RFC3339),
			Details:   []string{},
		}
		writeJSONResponse(w, http.StatusOK, payload)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		payload := healthPayload{
			Status:    domain.HealthStatusError,
			Timestamp: now.Format(time.RFC3339),
			Details:   []string{err.Error()},
		}
		writeJSONResponse(w, http.StatusServiceUnavailable, payload)
		return
	}

	payload := healthPayload{
		Status:      report.Status,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		Timestamp:   now.Format(time.RFC3339),
		Details:     []string{},
	}
	if report.Uptime > 0 {
		payload.Uptime = report.Uptime.String()
	}

	if len(report.Checks) > 0 {
		payload.Checks = make(map[string]healthCheckPayload, len(report.Checks))
		names := make([]string, 0, len(report.Checks))
		for name := range report.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			check := report.Checks[name]
			entry := healthCheckPayload{
				Status: check.Status,
				Detail: check.Detail,
				Error:  check.Error,
			}
			if check.Latency > 0 {
				entry.LatencyMS = check.Latency.Milliseconds()
			}
			if !check.CheckedAt.IsZero() {
				entry.CheckedAt = check.CheckedAt.UTC().Format(time.RFC3339)
			}
			payload.Checks[name] = entry
			if check.Status != domain.HealthStatusOK && strings.TrimSpace(check.Status) != "" {
				detail := check.Error
				if detail == "" {
					detail = check.Detail
				}
				if detail == "" {
					detail = check.Status
				}
				payload.Details = append(payload.Details, fmt.Sprintf("%s: %s", name, detail))
			}
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, payload)
}
