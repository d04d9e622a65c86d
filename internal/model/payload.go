package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

var validate = validator.New()

// readingPayload is the wire form of a Reading. Pointer fields distinguish
// a missing value from a legitimate zero.
type readingPayload struct {
	DeviceID string         `json:"device_id" validate:"required"`
	AssetID  string         `json:"asset_id" validate:"required"`
	Metric   string         `json:"metric" validate:"required"`
	Value    *float64       `json:"value" validate:"required"`
	TS       *time.Time     `json:"ts"`
	Extras   map[string]any `json:"extras"`
}

// ParseReading decodes and validates a single telemetry object. The
// timestamp defaults to now when the payload omits it.
func ParseReading(raw []byte, now time.Time) (Reading, error) {
	var p readingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := validate.Struct(p); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	r := Reading{
		DeviceID: p.DeviceID,
		AssetID:  p.AssetID,
		Metric:   p.Metric,
		Value:    *p.Value,
		TS:       now,
		Extras:   p.Extras,
	}
	if p.TS != nil {
		r.TS = *p.TS
	}
	return r, nil
}

type scadaPayload struct {
	Source    string         `json:"source"`
	Tag       string         `json:"tag" validate:"required"`
	Value     *float64       `json:"value"`
	Unit      string         `json:"unit"`
	TS        *time.Time     `json:"ts"`
	SiteID    string         `json:"site_id"`
	AssetID   string         `json:"asset_id"`
	Alarm     *bool          `json:"alarm"`
	Threshold *float64       `json:"threshold"`
	Meta      map[string]any `json:"meta"`
}

// ParseScadaPoint decodes and validates one supervisory-feed message.
func ParseScadaPoint(raw []byte) (ScadaPoint, error) {
	var p scadaPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ScadaPoint{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := validate.Struct(p); err != nil {
		return ScadaPoint{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if p.Source == "" {
		p.Source = "scada"
	}
	return ScadaPoint{
		Source:    p.Source,
		Tag:       p.Tag,
		Value:     p.Value,
		Unit:      p.Unit,
		TS:        p.TS,
		SiteID:    p.SiteID,
		AssetID:   p.AssetID,
		Alarm:     p.Alarm,
		Threshold: p.Threshold,
		Meta:      p.Meta,
	}, nil
}

// PositionReport is the wire form of a crew position update.
type PositionReport struct {
	CrewID  string   `json:"crew_id" validate:"required"`
	Lat     *float64 `json:"lat" validate:"required"`
	Lon     *float64 `json:"lon" validate:"required"`
	Speed   *float64 `json:"speed"`
	Heading *float64 `json:"heading"`
	Status  string   `json:"status"`
}

// ParsePositionReport decodes and validates a position update body.
func ParsePositionReport(raw []byte) (PositionReport, error) {
	var p PositionReport
	if err := json.Unmarshal(raw, &p); err != nil {
		return PositionReport{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := validate.Struct(p); err != nil {
		return PositionReport{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return p, nil
}

// CrewCreate is the wire form of a crew provisioning request.
type CrewCreate struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

// ParseCrewCreate decodes and validates a provisioning body.
func ParseCrewCreate(raw []byte) (CrewCreate, error) {
	var p CrewCreate
	if err := json.Unmarshal(raw, &p); err != nil {
		return CrewCreate{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if err := validate.Struct(p); err != nil {
		return CrewCreate{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if p.Status == "" {
		p.Status = "off_duty"
	}
	return p, nil
}
