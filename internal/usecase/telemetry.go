package usecase

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/vitos/smc_engine/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	TelemetryCapacity     = 1000
	PlanTelemetryCapacity = 500

	PlanAll       = "ALL"
	PlanChallenge = "CHALLENGE"

	lastEvents   = 5
	recentEvents = 20
	statSample   = 10
)

// WebhookTelemetry keeps in-memory rings of webhook annotations: one global
// and one per plan. It is safe for concurrent use.
type WebhookTelemetry struct {
	mu     sync.Mutex
	total  int
	recent *Ring[domain.WebhookEvent]
	plans  map[string]*planBucket
}

type planBucket struct {
	total  int
	events *Ring[domain.WebhookEvent]
}

func NewWebhookTelemetry() *WebhookTelemetry {
	return &WebhookTelemetry{
		recent: NewRing[domain.WebhookEvent](TelemetryCapacity),
		plans: map[string]*planBucket{
			PlanAll:       {events: NewRing[domain.WebhookEvent](PlanTelemetryCapacity)},
			PlanChallenge: {events: NewRing[domain.WebhookEvent](PlanTelemetryCapacity)},
		},
	}
}

// PlanKey buckets any plan other than ALL under CHALLENGE.
func PlanKey(plan string) string {
	if strings.EqualFold(plan, PlanAll) {
		return PlanAll
	}
	return PlanChallenge
}

func (t *WebhookTelemetry) Ingest(evt domain.WebhookEvent) {
	evt.Plan = PlanKey(evt.Plan)
	evt.Side = strings.ToUpper(evt.Side)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.recent.Push(evt)
	b := t.plans[evt.Plan]
	b.total++
	b.events.Push(evt)
}

// FieldStats summarizes one optional numeric webhook field. Pointers are
// nil when no event carried the field.
type FieldStats struct {
	Avg    *float64  `json:"avg"`
	Median *float64  `json:"med"`
	Min    *float64  `json:"min"`
	Max    *float64  `json:"max"`
	Sample []float64 `json:"sample"`
}

type PlanStats struct {
	Count      int                   `json:"count"`
	Confidence FieldStats            `json:"confidence"`
	ATRPct     FieldStats            `json:"atr_pct"`
	Last5      []domain.WebhookEvent `json:"last5"`
}

type TelemetrySummary struct {
	Total  int                   `json:"total"`
	Plans  map[string]PlanStats  `json:"plans"`
	Recent []domain.WebhookEvent `json:"recent"`
}

func (t *WebhookTelemetry) Summary() TelemetrySummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := TelemetrySummary{
		Total:  t.total,
		Plans:  make(map[string]PlanStats, len(t.plans)),
		Recent: t.recent.Recent(recentEvents),
	}
	for name, b := range t.plans {
		out.Plans[name] = planStats(b.events.Recent(-1))
	}
	return out
}

// planStats expects events newest first.
func planStats(events []domain.WebhookEvent) PlanStats {
	var confs, atrs []float64
	for _, e := range events {
		if e.Confidence != nil {
			confs = append(confs, *e.Confidence)
		}
		if e.ATRPct != nil {
			atrs = append(atrs, *e.ATRPct)
		}
	}
	last := events
	if len(last) > lastEvents {
		last = last[:lastEvents]
	}
	return PlanStats{
		Count:      len(events),
		Confidence: fieldStats(confs),
		ATRPct:     fieldStats(atrs),
		Last5:      last,
	}
}

func fieldStats(xs []float64) FieldStats {
	sample := xs
	if len(sample) > statSample {
		sample = sample[:statSample]
	}
	fs := FieldStats{Sample: append([]float64{}, sample...)}
	if len(xs) == 0 {
		return fs
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	avg := round2(stat.Mean(sorted, nil))
	med := round2(median(sorted))
	lo, hi := floats.Min(sorted), floats.Max(sorted)
	fs.Avg, fs.Median, fs.Min, fs.Max = &avg, &med, &lo, &hi
	return fs
}

// median of an ascending slice; even lengths average the middle pair.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
