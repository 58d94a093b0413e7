// Package server exposes the live stats model to the dashboard UI over a
// small local HTTP API, and offers an inlet for game-state events. The UI
// itself lives elsewhere; this is just its data source.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tank-tracker/internal/dto"
	"tank-tracker/internal/events"
	"tank-tracker/internal/store"
	"tank-tracker/internal/syncer"

	"github.com/rs/zerolog"
)

type Server struct {
	store      *store.Store
	sched      *syncer.Scheduler
	reconciler *events.Reconciler
	logger     zerolog.Logger
}

func New(st *store.Store, sched *syncer.Scheduler, rec *events.Reconciler, logger zerolog.Logger) *Server {
	return &Server{store: st, sched: sched, reconciler: rec, logger: logger}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/team", s.handleTeam)
	mux.HandleFunc("GET /api/battles", s.handleBattles)
	mux.HandleFunc("GET /api/battles/current", s.handleCurrentBattle)
	mux.HandleFunc("GET /api/battles/{id}", s.handleBattle)
	mux.HandleFunc("GET /api/players/{id}", s.handlePlayer)
	mux.HandleFunc("GET /api/bestworst", s.handleBestWorst)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/battles/{id}/delete", s.handleDelete)
	mux.HandleFunc("POST /api/events", s.handleEvent)
	return mux
}

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.TeamAggregate())
}

func (s *Server) handleBattles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleCurrentBattle(w http.ResponseWriter, r *http.Request) {
	arenaID, agg, ok := s.store.CurrentBattleAggregate()
	if !ok {
		writeError(w, http.StatusNotFound, "no battle in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"arenaId": arenaID, "aggregate": agg})
}

func (s *Server) handleBattle(w http.ResponseWriter, r *http.Request) {
	arenaID := r.PathValue("id")
	agg, ok := s.store.BattleAggregate(arenaID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown arena")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.PlayerAggregate(r.PathValue("id")))
}

func (s *Server) handleBestWorst(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.BestAndWorstBattle())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(snap)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := s.sched.Import(r.Context(), payload); err != nil {
		if errors.Is(err, dto.ErrInvalidImport) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("import failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.sched.ClearAll(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("clear failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	arenaID := r.PathValue("id")
	if err := s.sched.DeleteBattle(r.Context(), arenaID); err != nil {
		s.logger.Error().Err(err).Str("arena_id", arenaID).Msg("delete battle failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleEvent is the inlet for the host game's SDK glue: one typed event
// per request, dispatched to the reconciler.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "event is not a JSON object")
		return
	}

	ev, err := decodeEvent(envelope.Type, body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.reconciler.Submit(ev)
	writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func decodeEvent(eventType string, body []byte) (events.Event, error) {
	switch eventType {
	case "hangarStatus":
		return decodeAs[events.HangarStatus](body)
	case "vehicleInfo":
		return decodeAs[events.VehicleInfo](body)
	case "platoonStatus":
		return decodeAs[events.PlatoonStatus](body)
	case "arenaInfo":
		return decodeAs[events.ArenaInfo](body)
	case "battlePeriod":
		return decodeAs[events.BattlePeriod](body)
	case "damage":
		return decodeAs[events.DamageFeedback](body)
	case "kill":
		return decodeAs[events.KillFeedback](body)
	case "battleResult":
		return decodeAs[events.BattleResult](body)
	default:
		return nil, errors.New("unknown event type: " + eventType)
	}
}

func decodeAs[T events.Event](body []byte) (events.Event, error) {
	var ev T
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
