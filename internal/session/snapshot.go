package session

import (
	"fmt"
	"time"

	"github.com/chessdream/chessd/internal/chess"
)

// Snapshot is the persisted image of a session. Moves are stored in UCI and
// replayed on restore, so FEN and PGN are informational.
type Snapshot struct {
	ID          string            `json:"id"`
	White       string            `json:"white"`
	Black       string            `json:"black"`
	TimeControl chess.TimeControl `json:"time_control"`
	InitialFEN  string            `json:"initial_fen"`
	Moves       []string          `json:"moves"`
	FEN         string            `json:"fen"`
	PGN         string            `json:"pgn"`
	State       State             `json:"state"`
	Status      chess.GameStatus  `json:"status"`
	Result      chess.GameResult  `json:"result"`
	WhiteClock  ClockRecord       `json:"white_clock"`
	BlackClock  ClockRecord       `json:"black_clock"`
	DrawOfferBy string            `json:"draw_offer_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Version     uint64            `json:"version"`
}

// Active reports whether the snapshot is of a game still in progress.
func (snap *Snapshot) Active() bool {
	return snap.State == StateInProgress
}

// Snapshot copies the session state. The copy shares nothing with the
// session and can be persisted after the lock is gone.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	moves := s.engine.Moves()
	uci := make([]string, len(moves))
	for i, m := range moves {
		uci[i] = m.String()
	}

	snap := &Snapshot{
		ID:          s.id,
		White:       s.players[chess.White],
		Black:       s.players[chess.Black],
		TimeControl: s.tc,
		InitialFEN:  s.engine.InitialBoard().FEN(),
		Moves:       uci,
		FEN:         s.engine.GetFEN(),
		PGN:         s.engine.GetPGN(s.pgnTagsLocked(), s.result),
		State:       StateInProgress,
		Status:      s.result.Status(),
		Result:      s.result,
		WhiteClock:  s.clocks[chess.White].record(),
		BlackClock:  s.clocks[chess.Black].record(),
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
		Version:     s.version,
	}
	if !s.result.IsOngoing() {
		snap.State = StateTerminated
	}
	if s.drawOffer != nil {
		snap.DrawOfferBy = s.drawOffer.String()
	}
	return snap
}

func (s *Session) pgnTagsLocked() map[string]string {
	tags := map[string]string{
		"Event": "chessd game",
		"Site":  s.id,
		"Date":  s.createdAt.UTC().Format("2006.01.02"),
		"White": s.players[chess.White],
		"Black": s.players[chess.Black],
	}
	if !s.tc.Untimed() {
		tags["TimeControl"] = fmt.Sprintf("%d+%d", s.tc.Initial, s.tc.Increment)
	}
	if s.result.Kind == chess.Timeout {
		tags["Termination"] = "time forfeit"
	}
	return tags
}

// Restore rebuilds a session from a snapshot by replaying its moves. The
// returned session's flag timer is not armed; call Start.
func Restore(snap *Snapshot, opts ...Option) (*Session, error) {
	if snap == nil {
		return nil, fmt.Errorf("restore: nil snapshot")
	}

	engine := chess.NewEngine()
	if snap.InitialFEN != "" && snap.InitialFEN != chess.StartFEN {
		var err error
		if engine, err = chess.NewEngineFromFEN(snap.InitialFEN); err != nil {
			return nil, fmt.Errorf("restore %s: %w", snap.ID, err)
		}
	}
	for i, uci := range snap.Moves {
		if _, err := engine.MakeMoveUCI(uci); err != nil {
			return nil, fmt.Errorf("restore %s: move %d %q: %w", snap.ID, i+1, uci, err)
		}
	}
	if snap.FEN != "" && engine.GetFEN() != snap.FEN {
		return nil, fmt.Errorf("restore %s: replay reached %q, snapshot says %q", snap.ID, engine.GetFEN(), snap.FEN)
	}

	s := newSession(snap.ID, snap.White, snap.Black, snap.TimeControl, engine, opts)
	s.clocks[chess.White] = snap.WhiteClock.clock()
	s.clocks[chess.Black] = snap.BlackClock.clock()
	s.createdAt, s.updatedAt = snap.CreatedAt, snap.UpdatedAt
	s.version = snap.Version

	// Results decided off the board are only known from the snapshot.
	s.result = engine.Result()
	if s.result.IsOngoing() && !snap.Result.IsOngoing() {
		s.result = snap.Result
	}
	if !s.result.IsOngoing() {
		engine.Finish()
	}

	if snap.DrawOfferBy != "" && s.result.IsOngoing() {
		c, ok := chess.ParseColor(snap.DrawOfferBy)
		if !ok {
			return nil, fmt.Errorf("restore %s: bad draw offer %q", snap.ID, snap.DrawOfferBy)
		}
		s.drawOffer = &c
	}
	return s, nil
}
