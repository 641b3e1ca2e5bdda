// Package net exposes the hub over HTTP.
package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"waypoint-walk/server/internal/geom"
	"waypoint-walk/server/internal/hub"
	"waypoint-walk/server/internal/net/ws"
	"waypoint-walk/server/internal/scene"
	"waypoint-walk/server/internal/telemetry"
)

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// Metrics serves /metrics when set.
	Metrics nethttp.Handler
	// Counters feeds the telemetry block of /diagnostics when set.
	Counters *telemetry.Counters
	// ClientDir is served at / when set.
	ClientDir string
	// EnablePprof mounts the runtime profiler under /debug.
	EnablePprof bool
}

type sceneSummary struct {
	ID           string `json:"id"`
	Obstacles    int    `json:"obstacles"`
	Waypoints    int    `json:"waypoints"`
	Interactions int    `json:"interactions"`
	Issues       int    `json:"issues"`
}

type interactionView struct {
	Point  string       `json:"point"`
	Label  string       `json:"label"`
	Radius float64      `json:"radius"`
	Action scene.Action `json:"action"`
}

type sceneDetail struct {
	ID           string               `json:"id"`
	Bounds       geom.Vec2            `json:"bounds"`
	Radius       float64              `json:"radius"`
	Speed        float64              `json:"speed"`
	Metric       string               `json:"metric"`
	Spawn        geom.Vec3            `json:"spawn"`
	Exit         string               `json:"exit,omitempty"`
	Obstacles    []geom.Rect          `json:"obstacles"`
	Waypoints    map[string]geom.Vec3 `json:"waypoints"`
	Interactions []interactionView    `json:"interactions"`
	Issues       []string             `json:"issues,omitempty"`
}

type joinRequest struct {
	Scene string `json:"scene"`
}

func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Get("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		loop := h.Loop()
		payload := struct {
			Status     string                   `json:"status"`
			ServerTime int64                    `json:"serverTime"`
			TickRate   int                      `json:"tickRate"`
			Tick       uint64                   `json:"tick"`
			Pending    int                      `json:"pendingCommands"`
			Scenes     int                      `json:"scenes"`
			Sessions   []hub.SessionDiagnostics `json:"sessions"`
			Telemetry  map[string]uint64        `json:"telemetry,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   loop.Config().TickRate,
			Tick:       loop.Tick(),
			Pending:    loop.Pending(),
			Scenes:     h.Catalog().Len(),
			Sessions:   h.Diagnostics(),
			Telemetry:  cfg.Counters.Snapshot(),
		}
		respondJSON(w, logger, nethttp.StatusOK, payload)
	})

	r.Get("/scenes", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		catalog := h.Catalog()
		summaries := make([]sceneSummary, 0, catalog.Len())
		for _, id := range catalog.IDs() {
			sc, err := catalog.Get(id)
			if err != nil {
				continue
			}
			summaries = append(summaries, sceneSummary{
				ID:           sc.ID,
				Obstacles:    len(sc.Geometry.Obstacles),
				Waypoints:    len(sc.Geometry.Waypoints),
				Interactions: len(sc.Interactions),
				Issues:       len(sc.Issues),
			})
		}
		respondJSON(w, logger, nethttp.StatusOK, summaries)
	})

	r.Get("/scenes/{id}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		sc, err := h.Catalog().Get(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, logger, nethttp.StatusNotFound, err.Error())
			return
		}
		respondJSON(w, logger, nethttp.StatusOK, describeScene(sc))
	})

	r.Post("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req joinRequest
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				respondError(w, logger, nethttp.StatusBadRequest, "invalid payload")
				return
			}
		}
		if req.Scene == "" {
			req.Scene = r.URL.Query().Get("scene")
		}
		join, err := h.Join(r.Context(), req.Scene)
		if err != nil {
			if errors.Is(err, scene.ErrUnknownScene) {
				respondError(w, logger, nethttp.StatusNotFound, err.Error())
				return
			}
			respondError(w, logger, nethttp.StatusInternalServerError, "join failed")
			return
		}
		respondJSON(w, logger, nethttp.StatusOK, join)
	})

	wsHandler := ws.NewHandler(h, ws.HandlerConfig{Logger: logger})
	r.Get("/ws", wsHandler.Handle)

	if cfg.Metrics != nil {
		r.Method(nethttp.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}

	if cfg.ClientDir != "" {
		r.Handle("/*", nethttp.FileServer(nethttp.Dir(cfg.ClientDir)))
	}

	return r
}

func describeScene(sc *scene.Scene) sceneDetail {
	detail := sceneDetail{
		ID:        sc.ID,
		Bounds:    sc.Bounds,
		Radius:    sc.Radius,
		Speed:     sc.Speed,
		Metric:    sc.Metric.String(),
		Spawn:     sc.SpawnPoint(""),
		Exit:      sc.ExitPoint,
		Obstacles: append([]geom.Rect(nil), sc.Geometry.Obstacles...),
		Waypoints: make(map[string]geom.Vec3, len(sc.Geometry.Waypoints)),
	}
	for name, wp := range sc.Geometry.Waypoints {
		detail.Waypoints[name] = wp
	}
	detail.Interactions = make([]interactionView, 0, len(sc.Interactions))
	for _, def := range sc.Interactions {
		view := interactionView{Point: def.Point, Label: def.Label, Radius: def.Radius}
		if action, ok := def.Trigger.(scene.Action); ok {
			view.Action = action
		}
		detail.Interactions = append(detail.Interactions, view)
	}
	for _, issue := range sc.Issues {
		detail.Issues = append(detail.Issues, issue.String())
	}
	sort.Strings(detail.Issues)
	return detail
}

func requestLogger(logger telemetry.Logger) func(nethttp.Handler) nethttp.Handler {
	return func(next nethttp.Handler) nethttp.Handler {
		return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
			// Websocket upgrades hijack the writer; log them on the way in.
			if r.URL.Path == "/ws" {
				logger.Printf("[http] %s %s upgrade", r.Method, r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Printf("[http] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func respondJSON(w nethttp.ResponseWriter, logger telemetry.Logger, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func respondError(w nethttp.ResponseWriter, logger telemetry.Logger, status int, message string) {
	respondJSON(w, logger, status, map[string]string{"error": message})
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	nethttp.Error(w, message, status)
}
