// Package crew tracks field crews: a bounded GPS track per crew plus a
// mutable last-known summary, fed by authenticated mobile position reports.
package crew

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fieldops-gateway/internal/broker"
	"fieldops-gateway/internal/geo"
	"fieldops-gateway/internal/metrics"
	"fieldops-gateway/internal/model"
	"fieldops-gateway/internal/series"
)

// Track query defaults, applied when the caller omits the parameters.
const (
	DefaultTrackMinutes = 60
	DefaultTrackLimit   = 500
)

// Service owns the crew roster and per-crew position tracks.
type Service struct {
	mu     sync.RWMutex
	crews  map[string]*model.CrewSummary
	track  *series.Bounded[string, model.CrewPosition]
	broker *broker.Broker
	log    zerolog.Logger
	now    func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a crew service with the given per-crew track
// capacity.
func NewService(trackCapacity int, b *broker.Broker, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		crews:  make(map[string]*model.CrewSummary),
		track:  series.New[string, model.CrewPosition](trackCapacity),
		broker: b,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create provisions a new crew. Crews must exist before they may report
// positions.
func (s *Service) Create(c model.CrewCreate) (model.CrewSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.crews[c.ID]; ok {
		return model.CrewSummary{}, fmt.Errorf("%w: crew id already exists", model.ErrBadRequest)
	}
	summary := &model.CrewSummary{
		ID:     c.ID,
		Name:   c.Name,
		Role:   c.Role,
		Status: c.Status,
	}
	s.crews[c.ID] = summary
	s.log.Info().Str("crew", c.ID).Msg("crew provisioned")
	return *summary, nil
}

// Get returns one crew summary.
func (s *Service) Get(id string) (model.CrewSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.crews[id]
	if !ok {
		return model.CrewSummary{}, fmt.Errorf("%w: crew not found", model.ErrNotFound)
	}
	return *summary, nil
}

// List returns crew summaries, optionally filtered by exact status and by a
// bounding box. A crew with no last-known position is excluded only when a
// bbox filter is supplied.
func (s *Service) List(status string, bb *geo.BBox) []model.CrewSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CrewSummary, 0, len(s.crews))
	for _, c := range s.crews {
		if status != "" && c.Status != status {
			continue
		}
		if bb != nil {
			if c.LastLat == nil || c.LastLon == nil {
				continue
			}
			if !bb.Contains(*c.LastLat, *c.LastLon) {
				continue
			}
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReportPosition appends a track point for a provisioned crew, updates its
// last-known summary and publishes a position event. Unknown crews are
// rejected with no side effects.
func (s *Service) ReportPosition(rep model.PositionReport) (model.CrewPosition, error) {
	s.mu.Lock()
	summary, ok := s.crews[rep.CrewID]
	if !ok {
		s.mu.Unlock()
		return model.CrewPosition{}, fmt.Errorf("%w: unknown crew_id", model.ErrNotFound)
	}

	ts := s.now()
	pos := model.CrewPosition{
		CrewID:  rep.CrewID,
		TS:      ts,
		Lat:     *rep.Lat,
		Lon:     *rep.Lon,
		Speed:   rep.Speed,
		Heading: rep.Heading,
	}
	s.track.Append(rep.CrewID, pos)

	lat, lon := pos.Lat, pos.Lon
	summary.LastLat = &lat
	summary.LastLon = &lon
	if summary.LastSeenAt == nil || ts.After(*summary.LastSeenAt) {
		seen := ts
		summary.LastSeenAt = &seen
	}
	if rep.Status != "" {
		summary.Status = rep.Status
	}
	s.mu.Unlock()

	metrics.PositionsAccepted.Inc()
	if s.broker != nil {
		s.broker.Publish("position", pos)
	}
	return pos, nil
}

// Track returns the crew summary plus its positions within the lookback
// window, in chronological order. The limit keeps the most recent points:
// a window holding t1<t2<t3 with limit 2 yields [t2, t3].
func (s *Service) Track(id string, minutes, limit int) (model.CrewSummary, []model.CrewPosition, error) {
	summary, err := s.Get(id)
	if err != nil {
		return model.CrewSummary{}, nil, err
	}
	if minutes < 1 {
		minutes = 1
	}
	if limit <= 0 {
		limit = DefaultTrackLimit
	}

	since := s.now().Add(-time.Duration(minutes) * time.Minute)
	all := s.track.Get(id)

	pts := make([]model.CrewPosition, 0, len(all))
	for _, p := range all {
		if !p.TS.Before(since) {
			pts = append(pts, p)
		}
	}
	if len(pts) > limit {
		pts = pts[len(pts)-limit:]
	}
	return summary, pts, nil
}
