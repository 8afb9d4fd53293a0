package web

import (
	"net/http"
	"time"

	"github.com/chessdream/chessd/internal/chess"
	"github.com/chessdream/chessd/internal/session"
)

// GameIndex represents a game available for spectating
type GameIndex struct {
	GameID         string              `json:"gameId"`
	Players        GamePlayers         `json:"players"`
	Status         chess.GameStatus    `json:"status"`
	MoveCount      int                 `json:"moveCount"`
	LastMoveAt     *time.Time          `json:"lastMoveAt,omitempty"`
	TimeControl    string              `json:"timeControl"`
	SpectatorCount int                 `json:"spectatorCount"`
	MaterialCount  chess.MaterialCount `json:"materialCount"`
}

type GamePlayers struct {
	White string `json:"white"`
	Black string `json:"black"`
}

func (s *Service) indexEntry(sess *session.Session) GameIndex {
	snap := sess.Snapshot()
	entry := GameIndex{
		GameID:         snap.ID,
		Players:        GamePlayers{White: snap.White, Black: snap.Black},
		Status:         snap.Status,
		MoveCount:      len(snap.Moves),
		TimeControl:    snap.TimeControl.String(),
		SpectatorCount: s.hub.SpectatorCount(snap.ID),
	}
	if len(snap.Moves) > 0 {
		last := snap.UpdatedAt
		entry.LastMoveAt = &last
	}
	if b, err := chess.ParseFEN(snap.FEN); err == nil {
		entry.MaterialCount = chess.Material(b)
	}
	return entry
}

// GetActiveGamesHandler lists the games this server is hosting.
func (s *Service) GetActiveGamesHandler(w http.ResponseWriter, r *http.Request) {
	sessions := s.games.Sessions()
	games := make([]GameIndex, 0, len(sessions))
	for _, sess := range sessions {
		if sess.State() != session.StateInProgress {
			continue
		}
		games = append(games, s.indexEntry(sess))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"total": len(games),
	})
}
