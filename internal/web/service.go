package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chessdream/chessd/internal/auth"
	"github.com/chessdream/chessd/internal/chess"
	"github.com/chessdream/chessd/internal/config"
	"github.com/chessdream/chessd/internal/session"
)

// Games is the part of session.Registry the HTTP layer drives.
type Games interface {
	CreateGameFromFEN(ctx context.Context, white, black string, tc chess.TimeControl, fen string) (string, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	SubmitMove(ctx context.Context, id, player string, m chess.Move) (*session.MoveOutcome, error)
	Resign(ctx context.Context, id, player string) error
	OfferDraw(ctx context.Context, id, player string) error
	RespondDraw(ctx context.Context, id, player string, accept bool) error
	Clocks(ctx context.Context, id string) (session.ClockView, error)
	Sessions() []*session.Session
	Active() int
}

type Service struct {
	games       Games
	hub         *Hub
	config      *config.Config
	identifier  auth.Identifier
	createLimit *RateLimiter
	wsLimit     *RateLimiter
	logger      zerolog.Logger
}

func NewService(games Games, hub *Hub, cfg *config.Config, identifier auth.Identifier) *Service {
	if identifier == nil {
		identifier = auth.HeaderIdentifier{}
	}
	return &Service{
		games:       games,
		hub:         hub,
		config:      cfg,
		identifier:  identifier,
		createLimit: NewRateLimiter(cfg.RateLimit.CreatePerMinute, time.Minute),
		wsLimit:     NewRateLimiter(cfg.RateLimit.WebSocketPerMinute, time.Minute),
		logger:      log.With().Str("component", "web").Logger(),
	}
}

// Router wires every endpoint under /api.
func (s *Service) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(s.identifier))

	api.HandleFunc("/health", s.HealthHandler).Methods("GET")
	api.HandleFunc("/games", s.createLimit.Limit(s.CreateGameHandler)).Methods("POST")
	api.HandleFunc("/games", s.GetActiveGamesHandler).Methods("GET")
	api.HandleFunc("/games/{id}", s.GetGameHandler).Methods("GET")
	api.HandleFunc("/games/{id}/legal-moves", s.LegalMovesHandler).Methods("GET")
	api.HandleFunc("/games/{id}/moves", s.MakeMoveHandler).Methods("POST")
	api.HandleFunc("/games/{id}/resign", s.ResignGameHandler).Methods("POST")
	api.HandleFunc("/games/{id}/draw", s.DrawHandler).Methods("POST")
	api.HandleFunc("/games/{id}/clock", s.GetClockHandler).Methods("GET")
	api.HandleFunc("/ws", s.wsLimit.Limit(s.WebSocketHandler)).Methods("GET")

	// Preflight requests are answered by the CORS middleware.
	api.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+auth.PlayerHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := s.classify(err, r.URL.Path)
	writeJSON(w, status, resp)
}

// classify is the one error mapping shared by REST responses and WebSocket
// error frames. where names the request for the log.
func (s *Service) classify(err error, where string) (int, errorResponse) {
	var illegal *chess.IllegalMoveError
	var broken *chess.IllegalStateError

	switch {
	case errors.As(err, &illegal):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Reason: string(illegal.Reason)}
	case errors.Is(err, session.ErrNotYourTurn),
		errors.Is(err, session.ErrGameAlreadyTerminated),
		errors.Is(err, session.ErrNoDrawOffer),
		errors.Is(err, chess.ErrGameOver):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, session.ErrNotParticipant):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, session.ErrGameNotFound):
		return http.StatusNotFound, errorResponse{Error: "game not found"}
	case errors.Is(err, session.ErrInvalidPlayers),
		errors.Is(err, chess.ErrInvalidTimeControl),
		errors.Is(err, chess.ErrInvalidFEN):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.As(err, &broken):
		s.logger.Error().Err(err).Str("path", where).Msg("Internal invariant violated")
	default:
		s.logger.Error().Err(err).Str("path", where).Msg("Request failed")
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal error"}
}

// actingPlayer returns the identified caller or answers 401.
func actingPlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	player, ok := auth.PlayerFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "player identity required"})
		return "", false
	}
	return player, true
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"active_games": s.games.Active(),
	})
}

// CreateGameRequest pairs two players. TimeControl and Increment are in
// seconds; leaving both at zero picks the server default unless Untimed is set.
type CreateGameRequest struct {
	White       string `json:"white"`
	Black       string `json:"black"`
	TimeControl int    `json:"time_control"`
	Increment   int    `json:"increment"`
	Untimed     bool   `json:"untimed,omitempty"`
	FEN         string `json:"fen,omitempty"`
}

func (s *Service) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	tc := chess.TimeControl{Initial: req.TimeControl, Increment: req.Increment}
	if !req.Untimed && req.TimeControl == 0 && req.Increment == 0 {
		tc = chess.TimeControl{
			Initial:   s.config.Game.DefaultMinutes * 60,
			Increment: s.config.Game.DefaultIncrement,
		}
	}

	id, err := s.games.CreateGameFromFEN(r.Context(), req.White, req.Black, tc, req.FEN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info().Str("gameID", id).Str("white", req.White).Str("black", req.Black).Str("timeControl", tc.String()).Msg("Game created")
	writeJSON(w, http.StatusCreated, map[string]string{"game_id": id})
}

// GameView is the full read model of one game.
type GameView struct {
	*session.Snapshot
	Turn       string              `json:"turn"`
	Clocks     session.ClockView   `json:"clocks"`
	Material   chess.MaterialCount `json:"material"`
	Spectators int                 `json:"spectators"`
}

func (s *Service) gameView(sess *session.Session) GameView {
	snap := sess.Snapshot()
	clocks := sess.Clocks()
	view := GameView{
		Snapshot:   snap,
		Turn:       clocks.Turn,
		Clocks:     clocks,
		Spectators: s.hub.SpectatorCount(snap.ID),
	}
	if b, err := chess.ParseFEN(snap.FEN); err == nil {
		view.Material = chess.Material(b)
	}
	return view
}

func (s *Service) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.games.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.gameView(sess))
}

func (s *Service) LegalMovesHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.games.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fen":   sess.FEN(),
		"moves": sess.LegalMoves(),
	})
}

// MakeMoveRequest accepts either a UCI string or from/to squares.
type MakeMoveRequest struct {
	UCI       string `json:"uci,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

func (req MakeMoveRequest) move() (chess.Move, error) {
	if req.UCI != "" {
		return chess.ParseMove(req.UCI)
	}
	return chess.NewMove(req.From, req.To, req.Promotion)
}

func (s *Service) MakeMoveHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := actingPlayer(w, r)
	if !ok {
		return
	}
	gameID := mux.Vars(r)["id"]

	var req MakeMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}
	m, err := req.move()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	out, err := s.games.SubmitMove(r.Context(), gameID, player, m)
	if err != nil {
		s.logger.Debug().Err(err).Str("gameID", gameID).Str("player", player).Str("move", m.String()).Msg("Move rejected")
		s.writeError(w, r, err)
		return
	}

	s.logger.Debug().Str("gameID", gameID).Str("san", out.SAN).Str("fen", out.FEN).Bool("check", out.Check).Msg("Move applied")
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) ResignGameHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := actingPlayer(w, r)
	if !ok {
		return
	}
	gameID := mux.Vars(r)["id"]

	if err := s.games.Resign(r.Context(), gameID, player); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"gameId":  gameID,
	})
}

type DrawRequest struct {
	Action string `json:"action"` // offer, accept or decline
}

func (s *Service) DrawHandler(w http.ResponseWriter, r *http.Request) {
	player, ok := actingPlayer(w, r)
	if !ok {
		return
	}
	gameID := mux.Vars(r)["id"]

	var req DrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body")
		return
	}

	var err error
	switch req.Action {
	case "offer":
		err = s.games.OfferDraw(r.Context(), gameID, player)
	case "accept":
		err = s.games.RespondDraw(r.Context(), gameID, player, true)
	case "decline":
		err = s.games.RespondDraw(r.Context(), gameID, player, false)
	default:
		badRequest(w, "action must be offer, accept or decline")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"gameId":  gameID,
		"action":  req.Action,
	})
}

// TimeSync pairs the clock view with the server time it was taken at.
type TimeSync struct {
	session.ClockView
	ServerTimeMS int64 `json:"server_time_ms"`
}

func (s *Service) timeSync(ctx context.Context, gameID string) (TimeSync, error) {
	clocks, err := s.games.Clocks(ctx, gameID)
	if err != nil {
		return TimeSync{}, err
	}
	return TimeSync{ClockView: clocks, ServerTimeMS: time.Now().UnixMilli()}, nil
}

func (s *Service) GetClockHandler(w http.ResponseWriter, r *http.Request) {
	ts, err := s.timeSync(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}
