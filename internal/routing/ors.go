package routing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ORSClient queries the OpenRouteService directions API for driving
// geometry between two points.
type ORSClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	log      zerolog.Logger
}

// NewORSClient constructs a client for the given directions endpoint.
func NewORSClient(endpoint, apiKey string, timeout time.Duration, log zerolog.Logger) *ORSClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ORSClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type orsRequest struct {
	Coordinates  [][2]float64 `json:"coordinates"`
	Instructions bool         `json:"instructions"`
}

type orsResponse struct {
	Routes []struct {
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// ResolvePath implements PathResolver. Coordinates go over the wire as
// [lon, lat] pairs; the returned polyline is decoded into lat/lon points.
func (c *ORSClient) ResolvePath(ctx context.Context, start, end Point) ([]Point, error) {
	body, err := json.Marshal(orsRequest{
		Coordinates:  [][2]float64{{start.Lon, start.Lat}, {end.Lon, end.Lat}},
		Instructions: false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("route request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("route request: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var decoded orsResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("route response: %w", err)
	}
	if len(decoded.Routes) == 0 {
		return nil, fmt.Errorf("route response: no routes")
	}
	return decodePolyline(decoded.Routes[0].Geometry), nil
}

// decodePolyline decodes the Google encoded-polyline format (precision 1e5)
// used by the ORS geometry field.
func decodePolyline(encoded string) []Point {
	var pts []Point
	var lat, lon int64
	i := 0
	for i < len(encoded) {
		dLat, n, ok := decodeVarint(encoded[i:])
		if !ok {
			return pts
		}
		i += n
		lat += dLat

		dLon, n, ok := decodeVarint(encoded[i:])
		if !ok {
			return pts
		}
		i += n
		lon += dLon

		pts = append(pts, Point{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}
	return pts
}

func decodeVarint(s string) (int64, int, bool) {
	var result int64
	var shift uint
	for i := 0; i < len(s); i++ {
		b := int64(s[i]) - 63
		if b < 0 {
			return 0, 0, false
		}
		result |= (b & 0x1f) << shift
		if b < 0x20 {
			value := result >> 1
			if result&1 != 0 {
				value = ^value
			}
			return value, i + 1, true
		}
		shift += 5
	}
	return 0, 0, false
}
