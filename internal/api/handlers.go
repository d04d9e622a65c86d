package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"fieldops-gateway/internal/auth"
	"fieldops-gateway/internal/broker"
	"fieldops-gateway/internal/config"
	"fieldops-gateway/internal/crew"
	"fieldops-gateway/internal/geo"
	"fieldops-gateway/internal/ingest"
	"fieldops-gateway/internal/model"
	"fieldops-gateway/internal/routing"
	"fieldops-gateway/internal/site"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// Handler carries the wired services behind the HTTP surface. Everything is
// injected from main; handlers hold no globals.
type Handler struct {
	cfg        *config.Config
	gateway    *ingest.Gateway
	advisories *ingest.AdvisoryLog
	crews      *crew.Service
	sites      *site.Registry
	broker     *broker.Broker
	auth       *auth.Manager
	resolver   routing.PathResolver
	keepAlive  time.Duration
	log        zerolog.Logger
}

// NewHandler wires the HTTP surface.
func NewHandler(
	cfg *config.Config,
	gateway *ingest.Gateway,
	advisories *ingest.AdvisoryLog,
	crews *crew.Service,
	sites *site.Registry,
	b *broker.Broker,
	am *auth.Manager,
	resolver routing.PathResolver,
	log zerolog.Logger,
) *Handler {
	keepAlive := time.Duration(cfg.Stream.KeepAliveSeconds) * time.Second
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &Handler{
		cfg:        cfg,
		gateway:    gateway,
		advisories: advisories,
		crews:      crews,
		sites:      sites,
		broker:     b,
		auth:       am,
		resolver:   resolver,
		keepAlive:  keepAlive,
		log:        log,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

// HandleTelemetryIngest accepts a reading or an array of readings from
// field devices. Auth is enforced by middleware before this runs.
func (h *Handler) HandleTelemetryIngest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}
	res, err := h.gateway.Ingest(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// HandleScadaIngest accepts supervisory-feed messages.
func (h *Handler) HandleScadaIngest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}
	res, err := h.gateway.IngestScada(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

// HandleHistory returns the stored reading history for one asset.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "asset_id")
	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id": assetID,
		"items":    h.gateway.History(assetID),
	})
}

// HandleAdvisories returns the retained advisory window, oldest first.
func (h *Handler) HandleAdvisories(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			limit = v
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": h.advisories.Recent(limit)})
}

// HandleCrewCreate provisions a crew.
func (h *Handler) HandleCrewCreate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}
	payload, err := model.ParseCrewCreate(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	summary, err := h.crews.Create(payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// HandleCrewList lists crew summaries with optional status and bbox filters.
// An unparsable bbox means "no filter", never a rejected request.
func (h *Handler) HandleCrewList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	bb := geo.ParseBBox(r.URL.Query().Get("bbox"))
	writeJSON(w, http.StatusOK, map[string]any{"items": h.crews.List(status, bb)})
}

// HandleCrewGet returns one crew summary.
func (h *Handler) HandleCrewGet(w http.ResponseWriter, r *http.Request) {
	summary, err := h.crews.Get(chi.URLParam(r, "crew_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleCrewPosition records a mobile GPS update. The mobile key middleware
// has already authenticated the caller.
func (h *Handler) HandleCrewPosition(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}
	rep, err := model.ParsePositionReport(body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.crews.ReportPosition(rep); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleCrewTrack returns the crew summary and its recent track points.
func (h *Handler) HandleCrewTrack(w http.ResponseWriter, r *http.Request) {
	minutes := crew.DefaultTrackMinutes
	limit := crew.DefaultTrackLimit
	if q := r.URL.Query().Get("minutes"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			minutes = v
		}
	}
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil {
			limit = v
		}
	}

	summary, pts, err := h.crews.Track(chi.URLParam(r, "crew_id"), minutes, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crew": summary, "points": pts})
}

// HandleSiteList lists sites, optionally bbox-filtered.
func (h *Handler) HandleSiteList(w http.ResponseWriter, r *http.Request) {
	bb := geo.ParseBBox(r.URL.Query().Get("bbox"))
	writeJSON(w, http.StatusOK, map[string]any{"items": h.sites.List(bb)})
}

// HandleSiteGet returns one site.
func (h *Handler) HandleSiteGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.sites.Get(chi.URLParam(r, "site_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleSiteRoute resolves drive geometry from one site to another. Resolver
// failures fall back to a synthetic path inside the resolver; this handler
// never surfaces them.
func (h *Handler) HandleSiteRoute(w http.ResponseWriter, r *http.Request) {
	from, err := h.sites.Get(chi.URLParam(r, "site_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	to, err := h.sites.Get(r.URL.Query().Get("to"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	pts, err := h.resolver.ResolvePath(r.Context(),
		routing.Point{Lat: from.Lat, Lon: from.Lon},
		routing.Point{Lat: to.Lat, Lon: to.Lon})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":   from.ID,
		"to":     to.ID,
		"points": pts,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates a dashboard user and issues a JWT.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot read body"})
		return
	}
	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
		return
	}

	role, err := h.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid credentials"})
		return
	}
	token, err := h.auth.GenerateJWT(req.Username, role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

// HandleHealthz reports liveness.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "env": h.cfg.App.Env})
}
