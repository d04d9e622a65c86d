package model

import "time"

// RiskLevel is the severity attached to a classified reading.
type RiskLevel string

const (
	LevelWarning  RiskLevel = "warning"
	LevelCritical RiskLevel = "critical"
)

// Reading is a single telemetry sample reported by a field device.
// Immutable once parsed; it only ever leaves the system by buffer eviction.
type Reading struct {
	DeviceID string         `json:"device_id"`
	AssetID  string         `json:"asset_id"`
	Metric   string         `json:"metric"`
	Value    float64        `json:"value"`
	TS       time.Time      `json:"ts"`
	Extras   map[string]any `json:"extras,omitempty"`
}

// RiskEvent is derived from a Reading that crossed a configured threshold.
// It always carries the reading that triggered it and is never persisted
// beyond the broadcast.
type RiskEvent struct {
	Level   RiskLevel `json:"level"`
	Reason  string    `json:"reason"`
	Reading Reading   `json:"reading"`
}

// CrewPosition is one GPS track point for a crew. Append-only, ordered by TS.
type CrewPosition struct {
	CrewID  string    `json:"crew_id"`
	TS      time.Time `json:"ts"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	Speed   *float64  `json:"speed,omitempty"`
	Heading *float64  `json:"heading,omitempty"`
}

// CrewSummary is the mutable last-known projection of a crew, updated on
// every accepted position report.
type CrewSummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       string     `json:"role,omitempty"`
	Status     string     `json:"status"`
	LastLat    *float64   `json:"last_lat,omitempty"`
	LastLon    *float64   `json:"last_lon,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// Site is a fixed operational location. Sites are seeded from configuration;
// the gateway only lists them and resolves routes between them.
type Site struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Lat     float64        `json:"lat"`
	Lon     float64        `json:"lon"`
	Address string         `json:"address,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ScadaPoint is one message from the supervisory feed. Unlike device
// telemetry it may carry its own alarm verdict or threshold.
type ScadaPoint struct {
	Source    string         `json:"source,omitempty"`
	Tag       string         `json:"tag"`
	Value     *float64       `json:"value,omitempty"`
	Unit      string         `json:"unit,omitempty"`
	TS        *time.Time     `json:"ts,omitempty"`
	SiteID    string         `json:"site_id,omitempty"`
	AssetID   string         `json:"asset_id,omitempty"`
	Alarm     *bool          `json:"alarm,omitempty"`
	Threshold *float64       `json:"threshold,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Breach reports whether the point triggers an advisory: either the feed
// flagged it, or it carries both a value and a threshold and the value
// reached the threshold.
func (p ScadaPoint) Breach() bool {
	if p.Alarm != nil && *p.Alarm {
		return true
	}
	return p.Value != nil && p.Threshold != nil && *p.Value >= *p.Threshold
}

// Advisory is the audit record produced by a supervisory breach. It keeps
// the full raw message under Meta["raw"].
type Advisory struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	SiteID    string         `json:"site_id,omitempty"`
	AssetID   string         `json:"asset_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Meta      map[string]any `json:"meta,omitempty"`
}
