package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/pair-detector/internal/detector"
	"github.com/aman-zulfiqar/pair-detector/internal/filter"
	"github.com/aman-zulfiqar/pair-detector/internal/models"
	"github.com/aman-zulfiqar/pair-detector/internal/policy"
	"github.com/aman-zulfiqar/pair-detector/internal/storage"
	"github.com/aman-zulfiqar/pair-detector/internal/stream"
)

// Detector is the read and selection surface of the running detector.
type Detector interface {
	State() stream.State
	Stats() detector.Stats
	Tokens() []*models.TokenCandidate
	Token(id uuid.UUID) (*models.TokenCandidate, error)
	Focus() *models.FocusRecord
	Select(id uuid.UUID) (*models.FocusRecord, error)
}

// Pinger is a dependency whose reachability /v1/health reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Detector Detector
	Policy   *policy.State
	Feed     storage.CandidateFeed // Redis-backed live feed (optional)
	Checks   map[string]Pinger     // configured sinks, by name
	DevMode  bool
	Logger   *logrus.Logger
}

// err returns a standardized JSON error response.
// In dev mode it includes details for debugging.
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// parseLimit reads ?limit with default def and range 1..max. A non-nil
// details map means the value was rejected.
func parseLimit(c echo.Context, def, max int) (int, map[string]any) {
	limit := def
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, map[string]any{"limit": "must be an integer"}
		}
		limit = n
	}
	if limit < 1 || limit > max {
		return 0, map[string]any{"limit": "min 1 max " + strconv.Itoa(max)}
	}
	return limit, nil
}

// Health pings every configured sink. Any failure answers 503.
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true}
	if len(h.Checks) == 0 {
		return c.JSON(http.StatusOK, resp)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp.Checks = make(map[string]string, len(h.Checks))
	for name, p := range h.Checks {
		if err := p.Ping(ctx); err != nil {
			h.Logger.WithError(err).WithField("check", name).Warn("health check failed")
			resp.OK = false
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}
	if !resp.OK {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// Status reports the subscription lifecycle state, lock and counters.
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		State:  h.Detector.State().String(),
		Locked: h.Policy.Locked(),
		Stats:  h.Detector.Stats(),
	})
}

// Tokens returns the detected list, newest first. With ?visible=true only
// candidates passing the current policy are returned.
func (h *Handlers) Tokens(c echo.Context) error {
	limit, bad := parseLimit(c, 100, 500)
	if bad != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", bad)
	}

	visible := false
	if v := c.QueryParam("visible"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid visible", map[string]any{"visible": "must be boolean"})
		}
		visible = b
	}

	p := h.Policy.Snapshot()
	items := make([]*models.TokenCandidate, 0, limit)
	for _, t := range h.Detector.Tokens() {
		if len(items) == limit {
			break
		}
		if visible && !filter.Passes(p, t) {
			continue
		}
		items = append(items, t)
	}
	return c.JSON(http.StatusOK, TokensResponse{Items: items})
}

func (h *Handlers) Token(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid id", map[string]any{"id": "must be a uuid"})
	}
	t, err := h.Detector.Token(id)
	if err != nil {
		if errors.Is(err, detector.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "token not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get token", nil)
	}
	return c.JSON(http.StatusOK, t)
}

// Select makes a listed token the focus and returns the placeholder record.
func (h *Handlers) Select(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid id", map[string]any{"id": "must be a uuid"})
	}
	rec, err := h.Detector.Select(id)
	if err != nil {
		if errors.Is(err, detector.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "token not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to select token", nil)
	}
	h.Logger.WithField("token", rec.TokenAddress.Hex()).Info("token selected via api")
	return c.JSON(http.StatusAccepted, rec)
}

func (h *Handlers) Focus(c echo.Context) error {
	rec := h.Detector.Focus()
	if rec == nil {
		return h.err(c, http.StatusNotFound, "no token selected", nil)
	}
	return c.JSON(http.StatusOK, rec)
}

// RecentFeed returns the most recent candidates from the live feed.
func (h *Handlers) RecentFeed(c echo.Context) error {
	if h.Feed == nil {
		return h.err(c, http.StatusServiceUnavailable, "feed is not configured", nil)
	}
	limit, bad := parseLimit(c, 50, 100)
	if bad != nil {
		return h.err(c, http.StatusBadRequest, "invalid limit", bad)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Feed.RecentCandidates(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get feed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, TokensResponse{Items: items})
}

func (h *Handlers) PolicyGet(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Policy.View())
}

// PolicyToggle reads a single toggle.
func (h *Handlers) PolicyToggle(c echo.Context) error {
	t, err := policy.ParseToggle(c.Param("toggle"))
	if err != nil {
		return h.err(c, http.StatusNotFound, "unknown toggle", map[string]any{"toggles": policy.Toggles})
	}
	v, err := policy.Get(h.Policy.Snapshot(), t)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read toggle", nil)
	}
	return c.JSON(http.StatusOK, ToggleResponse{Toggle: string(t), Value: v})
}

// PolicySet changes one toggle and returns the full policy view.
func (h *Handlers) PolicySet(c echo.Context) error {
	t, err := policy.ParseToggle(c.Param("toggle"))
	if err != nil {
		return h.err(c, http.StatusNotFound, "unknown toggle", map[string]any{"toggles": policy.Toggles})
	}
	var req ToggleRequest
	if err := c.Bind(&req); err != nil || req.Value == nil {
		return h.err(c, http.StatusBadRequest, "invalid json", map[string]any{"value": "boolean required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if _, err := h.Policy.Set(ctx, t, *req.Value); err != nil {
		h.Logger.WithError(err).WithField("toggle", t).Warn("policy change not persisted")
		return h.err(c, http.StatusInternalServerError, "failed to persist policy", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, h.Policy.View())
}

// PolicyReset restores the permissive default policy and unlocks.
func (h *Handlers) PolicyReset(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Policy.Reset(ctx); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to reset policy", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, h.Policy.View())
}

func (h *Handlers) LockSet(c echo.Context) error {
	var req LockRequest
	if err := c.Bind(&req); err != nil || req.Locked == nil {
		return h.err(c, http.StatusBadRequest, "invalid json", map[string]any{"locked": "boolean required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Policy.SetLocked(ctx, *req.Locked); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to persist lock", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, LockResponse{Locked: h.Policy.Locked()})
}

func (h *Handlers) LockToggle(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	locked, err := h.Policy.ToggleLocked(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to persist lock", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, LockResponse{Locked: locked})
}
