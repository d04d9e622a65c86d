package api

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"fieldops-gateway/internal/auth"
	"fieldops-gateway/internal/broker"
	"fieldops-gateway/internal/config"
	"fieldops-gateway/internal/crew"
	"fieldops-gateway/internal/ingest"
	"fieldops-gateway/internal/model"
	"fieldops-gateway/internal/risk"
	"fieldops-gateway/internal/routing"
	"fieldops-gateway/internal/site"
)

const (
	testDeviceToken = "device-secret"
	testMobileKey   = "mobile-secret"
	testPassword    = "ops-password"
)

type env struct {
	hub       *broker.Broker
	crews     *crew.Service
	sites     *site.Registry
	dashboard http.Handler
	data      http.Handler
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Stream.KeepAliveSeconds = 1
	cfg.Auth.DeviceToken = testDeviceToken
	cfg.Auth.MobileKey = testMobileKey
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.JWTExpiration = 60
	cfg.Auth.Users = []config.User{{Username: "op", PasswordHash: hash, Role: "supervisor"}}

	log := zerolog.Nop()
	hub := broker.New(16, log)
	advisories := ingest.NewAdvisoryLog(50)
	table := risk.Table{"A-100": {"stress": {Warn: 60, Crit: 80}}}
	gateway := ingest.NewGateway(100, table, hub, advisories, log)
	crews := crew.NewService(100, hub, log)
	sites := site.NewRegistry()
	am := auth.NewManager(cfg)

	h := NewHandler(cfg, gateway, advisories, crews, sites, hub, am, routing.Synthetic{StepKm: 5}, log)
	return &env{
		hub:       hub,
		crews:     crews,
		sites:     sites,
		dashboard: NewDashboardRouter(h, am, log),
		data:      NewDataRouter(h, am, log),
	}
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func deviceHeaders() map[string]string {
	return map[string]string{auth.DeviceTokenHeader: testDeviceToken}
}

func TestTelemetryIngestRequiresDeviceToken(t *testing.T) {
	e := newTestEnv(t)
	body := `{"device_id":"d-1","asset_id":"A-100","metric":"stress","value":10}`

	if w := doJSON(t, e.data, http.MethodPost, "/ingest/telemetry", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}
	wrong := map[string]string{auth.DeviceTokenHeader: "nope"}
	if w := doJSON(t, e.data, http.MethodPost, "/ingest/telemetry", body, wrong); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", w.Code)
	}
	if w := doJSON(t, e.data, http.MethodPost, "/ingest/telemetry", body, deviceHeaders()); w.Code != http.StatusAccepted {
		t.Fatalf("valid token: status = %d, want 202", w.Code)
	}
}

func TestTelemetryIngestResponses(t *testing.T) {
	e := newTestEnv(t)

	w := doJSON(t, e.data, http.MethodPost, "/ingest/telemetry",
		`[{"device_id":"d-1","asset_id":"A-100","metric":"stress","value":85},{"bad":1}]`, deviceHeaders())
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	var res ingest.Result
	decodeInto(t, w, &res)
	if res.Accepted != 1 || res.Rejected != 1 || res.Risks != 1 {
		t.Fatalf("result = %+v", res)
	}

	if w := doJSON(t, e.data, http.MethodPost, "/ingest/telemetry", `{"bad":1}`, deviceHeaders()); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed single: status = %d, want 400", w.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	e := newTestEnv(t)
	doJSON(t, e.data, http.MethodPost, "/ingest/telemetry",
		`{"device_id":"d-1","asset_id":"A-100","metric":"stress","value":42}`, deviceHeaders())

	w := doJSON(t, e.dashboard, http.MethodGet, "/history/A-100", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		AssetID string          `json:"asset_id"`
		Items   []model.Reading `json:"items"`
	}
	decodeInto(t, w, &resp)
	if resp.AssetID != "A-100" || len(resp.Items) != 1 || resp.Items[0].Value != 42 {
		t.Fatalf("resp = %+v", resp)
	}

	// Unknown assets answer an empty list, not an error.
	w = doJSON(t, e.dashboard, http.MethodGet, "/history/A-404", "", nil)
	decodeInto(t, w, &resp)
	if w.Code != http.StatusOK || len(resp.Items) != 0 {
		t.Fatalf("unknown asset: status=%d items=%v", w.Code, resp.Items)
	}
}

func TestScadaIngestAndAdvisories(t *testing.T) {
	e := newTestEnv(t)

	w := doJSON(t, e.data, http.MethodPost, "/ingest/scada",
		`{"tag":"breaker_1080","value":1,"alarm":true}`, deviceHeaders())
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	w = doJSON(t, e.dashboard, http.MethodGet, "/advisories", "", nil)
	var resp struct {
		Items []model.Advisory `json:"items"`
	}
	decodeInto(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].Title != "SCADA alarm: breaker_1080" {
		t.Fatalf("advisories = %+v", resp.Items)
	}
}

func TestCrewPositionAuthAndFlow(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.crews.Create(model.CrewCreate{ID: "alex", Name: "Alex", Status: "on_duty"}); err != nil {
		t.Fatalf("seed crew: %v", err)
	}
	body := `{"crew_id":"alex","lat":63.43,"lon":10.39}`

	if w := doJSON(t, e.dashboard, http.MethodPost, "/crew/position", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d, want 401", w.Code)
	}
	key := map[string]string{auth.MobileKeyHeader: testMobileKey}
	if w := doJSON(t, e.dashboard, http.MethodPost, "/crew/position",
		`{"crew_id":"ghost","lat":1,"lon":1}`, key); w.Code != http.StatusNotFound {
		t.Fatalf("unknown crew: status = %d, want 404", w.Code)
	}
	w := doJSON(t, e.dashboard, http.MethodPost, "/crew/position", body, key)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	// The report is visible in both the summary and the track.
	w = doJSON(t, e.dashboard, http.MethodGet, "/crew/alex", "", nil)
	var summary model.CrewSummary
	decodeInto(t, w, &summary)
	if summary.LastLat == nil || *summary.LastLat != 63.43 {
		t.Fatalf("summary = %+v", summary)
	}

	w = doJSON(t, e.dashboard, http.MethodGet, "/crew/alex/track?minutes=60&limit=10", "", nil)
	var track struct {
		Crew   model.CrewSummary    `json:"crew"`
		Points []model.CrewPosition `json:"points"`
	}
	decodeInto(t, w, &track)
	if len(track.Points) != 1 || track.Points[0].Lat != 63.43 {
		t.Fatalf("track = %+v", track)
	}
}

func TestCrewListBBoxFilter(t *testing.T) {
	e := newTestEnv(t)
	e.crews.Create(model.CrewCreate{ID: "alex", Name: "Alex"})
	e.crews.Create(model.CrewCreate{ID: "sara", Name: "Sara"})
	lat, lon := 63.5, 21.5
	e.crews.ReportPosition(model.PositionReport{CrewID: "alex", Lat: &lat, Lon: &lon})

	var resp struct {
		Items []model.CrewSummary `json:"items"`
	}
	w := doJSON(t, e.dashboard, http.MethodGet, "/crew/?bbox=21.0,63.0,22.0,64.0", "", nil)
	decodeInto(t, w, &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID != "alex" {
		t.Fatalf("bbox filter: %+v", resp.Items)
	}

	// A malformed bbox means no filter.
	w = doJSON(t, e.dashboard, http.MethodGet, "/crew/?bbox=bogus", "", nil)
	decodeInto(t, w, &resp)
	if w.Code != http.StatusOK || len(resp.Items) != 2 {
		t.Fatalf("bad bbox: status=%d items=%+v", w.Code, resp.Items)
	}
}

func TestCrewCreateRequiresJWT(t *testing.T) {
	e := newTestEnv(t)
	body := `{"id":"alex","name":"Alex"}`

	if w := doJSON(t, e.dashboard, http.MethodPost, "/crew/", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", w.Code)
	}

	token := login(t, e)
	bearer := map[string]string{"Authorization": "Bearer " + token}
	if w := doJSON(t, e.dashboard, http.MethodPost, "/crew/", body, bearer); w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if w := doJSON(t, e.dashboard, http.MethodPost, "/crew/", body, bearer); w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: status = %d, want 400", w.Code)
	}
}

func login(t *testing.T, e *env) string {
	t.Helper()
	w := doJSON(t, e.dashboard, http.MethodPost, "/auth/login",
		`{"username":"op","password":"`+testPassword+`"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	decodeInto(t, w, &resp)
	if !resp.Success || resp.Token == "" {
		t.Fatalf("login resp = %+v", resp)
	}
	return resp.Token
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newTestEnv(t)

	w := doJSON(t, e.dashboard, http.MethodPost, "/auth/login", `{"username":"op","password":"wrong"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", w.Code)
	}
	w = doJSON(t, e.dashboard, http.MethodPost, "/auth/login", `{"username":"ghost","password":"x"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: status = %d, want 401", w.Code)
	}
	w = doJSON(t, e.dashboard, http.MethodPost, "/auth/login", `{"username":"op"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing password: status = %d, want 400", w.Code)
	}
}

func TestSiteEndpoints(t *testing.T) {
	e := newTestEnv(t)
	e.sites.Add(model.Site{ID: "site-trondheim", Name: "Trondheim", Lat: 63.4305, Lon: 10.3951})
	e.sites.Add(model.Site{ID: "site-oslo", Name: "Oslo", Lat: 59.9139, Lon: 10.7522})

	var list struct {
		Items []model.Site `json:"items"`
	}
	w := doJSON(t, e.dashboard, http.MethodGet, "/sites/", "", nil)
	decodeInto(t, w, &list)
	if len(list.Items) != 2 {
		t.Fatalf("sites = %+v", list.Items)
	}

	w = doJSON(t, e.dashboard, http.MethodGet, "/sites/?bbox=10.0,63.0,11.0,64.0", "", nil)
	decodeInto(t, w, &list)
	if len(list.Items) != 1 || list.Items[0].ID != "site-trondheim" {
		t.Fatalf("bbox sites = %+v", list.Items)
	}

	if w := doJSON(t, e.dashboard, http.MethodGet, "/sites/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown site: status = %d, want 404", w.Code)
	}
}

func TestSiteRoute(t *testing.T) {
	e := newTestEnv(t)
	e.sites.Add(model.Site{ID: "site-trondheim", Name: "Trondheim", Lat: 63.4305, Lon: 10.3951})
	e.sites.Add(model.Site{ID: "site-oslo", Name: "Oslo", Lat: 59.9139, Lon: 10.7522})

	w := doJSON(t, e.dashboard, http.MethodGet, "/sites/site-trondheim/route?to=site-oslo", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		From   string          `json:"from"`
		To     string          `json:"to"`
		Points []routing.Point `json:"points"`
	}
	decodeInto(t, w, &resp)
	if resp.From != "site-trondheim" || resp.To != "site-oslo" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Points) < 2 {
		t.Fatalf("points = %v", resp.Points)
	}
	first, last := resp.Points[0], resp.Points[len(resp.Points)-1]
	if first.Lat != 63.4305 || last.Lat != 59.9139 {
		t.Fatalf("route endpoints = %v .. %v", first, last)
	}

	if w := doJSON(t, e.dashboard, http.MethodGet, "/sites/site-trondheim/route?to=nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown destination: status = %d, want 404", w.Code)
	}
	if w := doJSON(t, e.dashboard, http.MethodGet, "/sites/site-trondheim/route", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing destination: status = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	for _, h := range []http.Handler{e.data, e.dashboard} {
		w := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
}

// readSSEEvent consumes one "event:"/"data:" frame from the stream.
func readSSEEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			return event, data
		}
	}
}

func TestEventStream(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.dashboard)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	event, data := readSSEEvent(t, reader)
	if event != "ping" || data != "ready" {
		t.Fatalf("handshake = %s/%s, want ping/ready", event, data)
	}

	// The handshake is written after subscribing, so the hub is ready for a
	// publish now.
	e.hub.Publish("reading", model.Reading{DeviceID: "d-1", AssetID: "A-100", Metric: "stress", Value: 42})

	for {
		event, data = readSSEEvent(t, reader)
		if event == "ping" {
			continue // keep-alive
		}
		break
	}
	if event != "reading" {
		t.Fatalf("event = %q, want reading", event)
	}
	var r model.Reading
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if r.AssetID != "A-100" || r.Value != 42 {
		t.Fatalf("reading = %+v", r)
	}
}

func TestEventStreamUnsubscribesOnDisconnect(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.dashboard)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	reader := bufio.NewReader(resp.Body)
	readSSEEvent(t, reader)
	if n := e.hub.Subscribers(); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	resp.Body.Close()
	deadline := time.Now().Add(2 * time.Second)
	for e.hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber was not cleaned up after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
