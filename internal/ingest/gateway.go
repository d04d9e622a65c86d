// Package ingest validates inbound telemetry, appends it to the bounded
// history, classifies it and broadcasts the results. It also handles the
// supervisory feed, which carries its own alarm verdicts and produces
// advisories instead of risk events.
package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fieldops-gateway/internal/broker"
	"fieldops-gateway/internal/metrics"
	"fieldops-gateway/internal/model"
	"fieldops-gateway/internal/risk"
	"fieldops-gateway/internal/series"
)

// Gateway is the telemetry ingestion pipeline. Store appends happen before
// the corresponding publish, so a subscriber reacting to a reading event
// always finds that reading in history.
type Gateway struct {
	history    *series.Bounded[string, model.Reading]
	table      risk.Table
	broker     *broker.Broker
	advisories *AdvisoryLog
	log        zerolog.Logger
	now        func() time.Time
}

// Option customizes the gateway.
type Option func(*Gateway)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway constructs the pipeline with the given per-asset history
// capacity.
func NewGateway(historyCapacity int, table risk.Table, b *broker.Broker, advisories *AdvisoryLog, log zerolog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		history:    series.New[string, model.Reading](historyCapacity),
		table:      table,
		broker:     b,
		advisories: advisories,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result summarizes one ingest call.
type Result struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Risks    int `json:"risks"`
}

// Ingest accepts a single reading object or a JSON array of them. Array
// items are processed independently: a malformed item is counted as
// rejected without rolling back previously accepted ones. A malformed
// single object is an error.
func (g *Gateway) Ingest(raw []byte) (Result, error) {
	var res Result

	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Result{}, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
		}
		for _, item := range items {
			fired, err := g.ingestOne(item)
			if err != nil {
				res.Rejected++
				continue
			}
			res.Accepted++
			if fired {
				res.Risks++
			}
		}
		return res, nil
	}

	fired, err := g.ingestOne(raw)
	if err != nil {
		return Result{}, err
	}
	res.Accepted = 1
	if fired {
		res.Risks = 1
	}
	return res, nil
}

// ingestOne runs the store → classify → publish chain for one reading.
func (g *Gateway) ingestOne(raw []byte) (bool, error) {
	r, err := model.ParseReading(raw, g.now())
	if err != nil {
		metrics.ReadingsRejected.WithLabelValues("bad_request").Inc()
		return false, err
	}

	g.history.Append(r.AssetID, r)
	metrics.ReadingsAccepted.Inc()
	g.broker.Publish("reading", r)

	evt, fired := risk.Classify(r, g.table)
	if fired {
		metrics.RisksFired.WithLabelValues(string(evt.Level)).Inc()
		g.log.Warn().
			Str("asset", r.AssetID).
			Str("metric", r.Metric).
			Float64("value", r.Value).
			Str("level", string(evt.Level)).
			Msg("risk threshold crossed")
		g.broker.Publish("risk", evt)
	}
	return fired, nil
}

// History returns the stored readings for one asset, oldest first.
func (g *Gateway) History(assetID string) []model.Reading {
	return g.history.Get(assetID)
}

// ScadaResult summarizes one supervisory ingest call.
type ScadaResult struct {
	Accepted          int `json:"accepted"`
	Rejected          int `json:"rejected"`
	AdvisoriesCreated int `json:"advisories_created"`
}

type scadaEnvelope struct {
	Items []json.RawMessage `json:"items"`
}

// IngestScada accepts a single supervisory point or an {items: [...]}
// batch. Breaches become advisories; the advisory keeps the raw message
// for audit and is broadcast on its own event, bypassing the classifier.
func (g *Gateway) IngestScada(raw []byte) (ScadaResult, error) {
	var res ScadaResult

	var env scadaEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ScadaResult{}, fmt.Errorf("%w: %v", model.ErrBadRequest, err)
	}

	if env.Items == nil {
		p, err := model.ParseScadaPoint(raw)
		if err != nil {
			return ScadaResult{}, err
		}
		res.Accepted = 1
		if g.processScadaPoint(p) {
			res.AdvisoriesCreated = 1
		}
		return res, nil
	}

	for _, item := range env.Items {
		p, err := model.ParseScadaPoint(item)
		if err != nil {
			res.Rejected++
			continue
		}
		res.Accepted++
		if g.processScadaPoint(p) {
			res.AdvisoriesCreated++
		}
	}
	return res, nil
}

func (g *Gateway) processScadaPoint(p model.ScadaPoint) bool {
	if !p.Breach() {
		return false
	}

	body := "value=n/a"
	if p.Value != nil {
		body = fmt.Sprintf("value=%v", *p.Value)
		if p.Unit != "" {
			body += " " + p.Unit
		}
	}
	createdAt := g.now()
	if p.TS != nil {
		createdAt = *p.TS
	}

	adv := model.Advisory{
		ID:        uuid.NewString(),
		Title:     "SCADA alarm: " + p.Tag,
		Body:      strings.TrimSpace(body),
		SiteID:    p.SiteID,
		AssetID:   p.AssetID,
		CreatedAt: createdAt,
		Meta: map[string]any{
			"source":    p.Source,
			"tag":       p.Tag,
			"value":     p.Value,
			"unit":      p.Unit,
			"threshold": p.Threshold,
			"alarm":     true,
			"site_id":   p.SiteID,
			"asset_id":  p.AssetID,
			"raw":       p,
		},
	}

	g.advisories.Add(adv)
	metrics.AdvisoriesCreated.Inc()
	g.log.Warn().Str("tag", p.Tag).Str("site", p.SiteID).Msg("supervisory breach recorded")
	g.broker.Publish("advisory", adv)
	return true
}
