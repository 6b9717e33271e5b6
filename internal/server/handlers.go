package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/rounds"
	"neurotrainer/internal/store"
	"neurotrainer/internal/wshub"
)

// maxBody bounds request bodies; answers are a handful of small fields.
const maxBody = 64 << 10

type pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	Rounds  *rounds.Service
	Hub     *wshub.Hub
	DB      pinger       // nil when running on the in-memory store
	Metrics http.Handler // nil disables /metrics
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Str("component", "server").Err(err).Msg("writing response")
	}
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rounds.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid_argument", err.Error()})
	default:
		log.Error().Str("component", "server").Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{"internal", "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"invalid_argument", "malformed JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req gamedata.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := s.Rounds.Generate(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req gamedata.SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.Rounds.Submit(r.Context(), rounds.Submission{
		UserID:   req.UserID,
		Answer:   req.Answer,
		Speed:    req.Speed,
		Salt:     req.Manifest.Salt,
		Mode:     req.Mode,
		TimedOut: req.TimedOut,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSetPin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Pin    string `json:"pin"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.Rounds.SetPin(r.Context(), req.UserID, req.Pin); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSyncProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string            `json:"userId"`
		Profile store.ProfileSync `json:"profile"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.Rounds.SyncProfile(r.Context(), req.UserID, req.Profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := 0
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{"invalid_argument", "count must be an integer"})
			return
		}
		count = n
	}
	entries, err := s.Rounds.Leaderboard(r.Context(), gamedata.Mode(q.Get("mode")), count)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": entries})
}

// handleFeed upgrades to a websocket and streams judged rounds until the
// client goes away. Anything the client sends is discarded.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Warn().Str("component", "feed").Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	c := wshub.NewClient(conn)
	s.Hub.Register(c)
	defer s.Hub.Unregister(c.ID)
	log.Debug().Str("component", "feed").Str("client", c.ID).Msg("subscriber joined")

	ctx := conn.CloseRead(r.Context())
	c.WritePump(ctx)
	log.Debug().Str("component", "feed").Str("client", c.ID).Msg("subscriber left")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
