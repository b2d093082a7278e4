package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mustafaguc/command-service/internal/jobs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins
	},
}

type router struct {
	manager  *jobs.Manager
	streamer *jobs.LogStreamer
}

func NewRouter(manager *jobs.Manager, streamer *jobs.LogStreamer) http.Handler {
	rt := &router{manager: manager, streamer: streamer}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", rt.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", rt.handleCreateJob)
		r.Get("/{id}", rt.handleGetJob)
		r.Post("/{id}/cancel", rt.handleCancelJob)
		r.Get("/{id}/logs", rt.handleJobLogs)
		r.Get("/{id}/stream", rt.handleJobStream)
	})
	return r
}

func (rt *router) handleCreateJob(w http.ResponseWriter, req *http.Request) {
	var body jobs.CreateJobRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := body.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := rt.manager.Submit(req.Context(), body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to schedule job")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (rt *router) handleGetJob(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	job, ok := rt.manager.Get(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "not found")
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

func (rt *router) handleCancelJob(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	job, err := rt.manager.Cancel(id)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, jobs.ErrJobNotCancellable):
		respondWithError(w, http.StatusConflict, "job is not cancellable")
	case err != nil:
		respondWithError(w, http.StatusInternalServerError, "failed to cancel job")
	default:
		respondWithJSON(w, http.StatusOK, job)
	}
}

func (rt *router) handleJobLogs(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	job, ok := rt.manager.Get(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "not found")
		return
	}
	logs := rt.manager.Logs(id)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"job":     job,
		"summary": jobs.Summarize(logs),
		"logs":    logs,
	})
}

func (rt *router) handleJobStream(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if _, ok := rt.manager.Get(id); !ok {
		respondWithError(w, http.StatusNotFound, "not found")
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	rt.streamer.Subscribe(id, conn)
	defer rt.streamer.Unsubscribe(id, conn)

	// Keep the connection open until the client goes away.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

func (rt *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
