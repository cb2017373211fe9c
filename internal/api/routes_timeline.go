package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/reeledit/reeledit/internal/manager"
	"github.com/reeledit/reeledit/pkg/logger"
	"github.com/reeledit/reeledit/pkg/models"
	"github.com/reeledit/reeledit/pkg/sync"
)

type timelineRoutes struct {
	manager *manager.Manager
}

func (rs timelineRoutes) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", rs.Timeline)
	r.Put("/", rs.UpdateTimeline)
	r.Post("/rebuild", rs.Rebuild)
	r.Post("/save", rs.Save)

	return r
}

type timelineResponse struct {
	Overlays []models.OverlayItem     `json:"overlays"`
	Scenes   []models.SceneFrameRange `json:"scenes"`
}

// region Handlers

func (rs timelineRoutes) Timeline(w http.ResponseWriter, r *http.Request) {
	overlays, ranges := rs.manager.Overlays()
	writeJSON(w, http.StatusOK, timelineResponse{Overlays: overlays, Scenes: ranges})
}

func (rs timelineRoutes) UpdateTimeline(w http.ResponseWriter, r *http.Request) {
	var overlays []models.OverlayItem
	if err := json.NewDecoder(r.Body).Decode(&overlays); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rs.manager.UpdateOverlays(overlays)
	w.WriteHeader(http.StatusNoContent)
}

func (rs timelineRoutes) Rebuild(w http.ResponseWriter, r *http.Request) {
	overlays, err := rs.manager.Rebuild(r.Context())
	if err != nil {
		logger.Errorf("rebuilding timeline: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	_, ranges := rs.manager.Overlays()
	writeJSON(w, http.StatusOK, timelineResponse{Overlays: overlays, Scenes: ranges})
}

func (rs timelineRoutes) Save(w http.ResponseWriter, r *http.Request) {
	err := rs.manager.Save(r.Context())
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var conflict *sync.ConflictError
	switch {
	case errors.Is(err, sync.ErrSaveInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &conflict):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.Errorf("saving timeline: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// endregion

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("encoding response: %v", err)
	}
}
