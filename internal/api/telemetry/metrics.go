// Package telemetry owns the Prometheus collectors for the API: gate
// decisions and outbound transport behaviour. Collectors live on a private
// registry so tests can build as many as they like.
package telemetry

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "gatekeep"

	authSubsystem     = "auth"
	outboundSubsystem = "outbound"

	LabelState   = "state"
	LabelReason  = "reason"
	LabelHost    = "host"
	LabelCode    = "code"
	LabelOutcome = "outcome"
)

// Outcome label values for outbound calls.
const (
	OutcomeOK        = "ok"
	OutcomeExhausted = "exhausted"
	OutcomeTimeout   = "timeout"
	OutcomeCanceled  = "canceled"
	OutcomeError     = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	decisions        *prometheus.CounterVec
	outboundRetries  *prometheus.CounterVec
	outboundRequests *prometheus.CounterVec
	outboundLatency  prometheus.ObserverVec
	trackedVersions  prometheus.GaugeFunc
	users            prometheus.GaugeFunc
}

// usersTimeout bounds the count query run on every scrape.
const usersTimeout = 2 * time.Second

// New builds and registers every collector. versions, when non-nil, backs a
// gauge of how many principals the revocation registry tracks.
func New(versions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: authSubsystem,
				Name:      "decisions_total",
				Help:      "Authentication gate decisions by terminal state and rejection reason.",
			},
			[]string{LabelState, LabelReason},
		),
		outboundRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: outboundSubsystem,
				Name:      "retries_total",
				Help:      "Outbound attempts that failed and were retried.",
			},
			[]string{LabelHost, LabelCode},
		),
		outboundRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: outboundSubsystem,
				Name:      "requests_total",
				Help:      "Finished outbound calls by final status and outcome.",
			},
			[]string{LabelHost, LabelCode, LabelOutcome},
		),
		outboundLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: outboundSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Wall time of outbound calls including every retry and wait.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{LabelHost, LabelOutcome},
		),
	}
	reg.MustRegister(m.decisions, m.outboundRetries, m.outboundRequests, m.outboundLatency)

	if versions != nil {
		m.trackedVersions = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: authSubsystem,
				Name:      "tracked_principals",
				Help:      "Principals with a version in the revocation registry.",
			},
			func() float64 { return float64(versions()) },
		)
		reg.MustRegister(m.trackedVersions)
	}

	m.initialize()
	return m
}

// initialize zeroes the decision series we expect so dashboards see them
// before the first request.
func (m *Metrics) initialize() {
	m.decisions.With(prometheus.Labels{LabelState: httpx.StateAuthenticated.String(), LabelReason: httpx.ReasonNone.String()})
	for _, r := range []httpx.Reason{httpx.ReasonInvalidToken, httpx.ReasonTokenOutdated} {
		m.decisions.With(prometheus.Labels{LabelState: httpx.StateRejected.String(), LabelReason: r.String()})
	}
}

// TrackUsers registers a gauge of registered users backed by count. A failed
// count is exported as NaN.
func (m *Metrics) TrackUsers(count func(context.Context) (int64, error)) {
	m.users = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: authSubsystem,
			Name:      "registered_users",
			Help:      "Users stored in the database.",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), usersTimeout)
			defer cancel()

			n, err := count(ctx)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		},
	)
	m.registry.MustRegister(m.users)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveDecision matches httpx.Gate.OnDecision. Anonymous passes are
// counted under their own reason so they do not inflate real logins.
func (m *Metrics) ObserveDecision(_ context.Context, d httpx.Decision) {
	reason := d.Reason.String()
	if d.Anonymous {
		reason = "anonymous"
	}
	m.decisions.With(prometheus.Labels{LabelState: d.State.String(), LabelReason: reason}).Inc()
}

// ObserveRetry matches transportx.WithRetryHook.
func (m *Metrics) ObserveRetry(_ context.Context, e transportx.RetryEvent) {
	m.outboundRetries.With(prometheus.Labels{
		LabelHost: hostLabel(e.URL),
		LabelCode: codeLabel(e.Status),
	}).Inc()
}

// ObserveResult matches transportx.WithResultHook.
func (m *Metrics) ObserveResult(_ context.Context, r transportx.Result) {
	host := hostLabel(r.URL)
	outcome := outcomeLabel(r.Err)

	m.outboundRequests.With(prometheus.Labels{
		LabelHost:    host,
		LabelCode:    codeLabel(r.Status),
		LabelOutcome: outcome,
	}).Inc()
	m.outboundLatency.With(prometheus.Labels{
		LabelHost:    host,
		LabelOutcome: outcome,
	}).Observe(r.Duration.Seconds())
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, transportx.ErrExhausted):
		return OutcomeExhausted
	case errors.Is(err, transportx.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

func codeLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}

// hostLabel keeps cardinality bounded by dropping path and query.
func hostLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
