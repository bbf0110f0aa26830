package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wfunc/partyserver/logger"
	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/persistence"
	"github.com/wfunc/partyserver/room"
)

// Handler routes the websocket endpoint and the read-only HTTP surface.
func (s *GameServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods(http.MethodGet)
	r.HandleFunc("/games", s.handleRecentGames).Methods(http.MethodGet)
	r.HandleFunc("/games/{id:[0-9]+}", s.handleGetGame).Methods(http.MethodGet)
	r.HandleFunc("/players/{name}/history", s.handlePlayerHistory).Methods(http.MethodGet)
	r.Handle("/metrics", s.monitor.Handler()).Methods(http.MethodGet)
	return r
}

func (s *GameServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"rooms":       s.roomManager.Len(),
		"connections": s.sessionManager.Len(),
	})
}

func (s *GameServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	all, err := s.index.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	variant := models.Variant(r.URL.Query().Get("variant"))
	rooms := make([]room.Summary, 0, len(all))
	for _, summary := range all {
		if variant == "" || summary.Variant == variant {
			rooms = append(rooms, summary)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.roomManager.GetRoom(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Summary())
}

func (s *GameServer) handleRecentGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	games, err := s.history.Recent(r.Context(), models.Variant(q.Get("variant")), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": nonNil(games)})
}

func (s *GameServer) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeError(w, models.ErrValidationFailed)
		return
	}
	game, err := s.history.Game(r.Context(), uint(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *GameServer) handlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	stats, games, err := s.history.PlayerHistory(r.Context(), mux.Vars(r)["name"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "games": nonNil(games)})
}

func nonNil(games []models.GameRecord) []models.GameRecord {
	if games == nil {
		return []models.GameRecord{}
	}
	return games
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Debugw("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, models.ErrorCode(err)
	switch {
	case errors.Is(err, persistence.ErrRecordNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrValidationFailed):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"code": code, "message": err.Error()})
}
