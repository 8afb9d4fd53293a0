package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chessdream/chessd/internal/auth"
	"github.com/chessdream/chessd/internal/chess"
	"github.com/chessdream/chessd/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// WebSocket upgrader with reasonable settings
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame types pushed to clients.
const (
	UpdateState     = "state"
	UpdateMove      = "move"
	UpdateGameEnd   = "game_end"
	UpdateDrawOffer = "draw_offer"
	UpdateTimeSync  = "time_sync"
	UpdatePong      = "pong"
	UpdateError     = "error"
)

// GameUpdate is one frame sent to every client watching a game.
type GameUpdate struct {
	GameID string      `json:"gameId"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data,omitempty"`
}

// ErrorFrame is the payload of an error frame. Status is the HTTP status the
// same failure gets over REST.
type ErrorFrame struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// GameEnded is the payload of a game_end frame.
type GameEnded struct {
	Result chess.GameResult `json:"result"`
	Status chess.GameStatus `json:"status"`
	Score  string           `json:"score"`
}

// Hub maintains active WebSocket connections and turns session
// notifications into frames. It implements session.Observer.
type Hub struct {
	// Registered clients by game ID
	gameClients map[string]map[*Client]bool

	broadcast  chan GameUpdate
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	logger zerolog.Logger
}

type directMessage struct {
	client *Client
	data   []byte
}

// Client represents a WebSocket connection. Only identified clients may
// move or resign; everyone else just watches.
type Client struct {
	hub        *Hub
	service    *Service
	conn       *websocket.Conn
	send       chan []byte
	gameID     string
	playerID   string
	identified bool
}

func NewHub() *Hub {
	return &Hub{
		gameClients: make(map[string]map[*Client]bool),
		broadcast:   make(chan GameUpdate, sendBuffer),
		direct:      make(chan directMessage),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		logger:      log.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's main event loop. It returns when ctx is done, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for gameID, clients := range h.gameClients {
				for client := range clients {
					close(client.send)
				}
				delete(h.gameClients, gameID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.gameClients[client.gameID] == nil {
				h.gameClients[client.gameID] = make(map[*Client]bool)
			}
			h.gameClients[client.gameID][client] = true
			h.mu.Unlock()

			h.logger.Info().
				Str("gameID", client.gameID).
				Str("playerID", client.playerID).
				Msg("Client connected to game")

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

			h.logger.Info().
				Str("gameID", client.gameID).
				Str("playerID", client.playerID).
				Msg("Client disconnected from game")

		case d := <-h.direct:
			h.mu.Lock()
			if h.gameClients[d.client.gameID][d.client] {
				select {
				case d.client.send <- d.data:
				default:
					h.removeLocked(d.client)
				}
			}
			h.mu.Unlock()

		case update := <-h.broadcast:
			message, err := json.Marshal(update)
			if err != nil {
				h.logger.Error().Err(err).Str("type", update.Type).Msg("Failed to marshal game update")
				continue
			}

			h.mu.Lock()
			for client := range h.gameClients[update.GameID] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full; drop it rather than stall the game.
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.gameClients[client.gameID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	// Clean up empty game rooms
	if len(clients) == 0 {
		delete(h.gameClients, client.gameID)
	}
}

// BroadcastGameUpdate queues an update for every client watching its game.
func (h *Hub) BroadcastGameUpdate(update GameUpdate) {
	select {
	case h.broadcast <- update:
	default:
		h.logger.Warn().Str("gameID", update.GameID).Str("type", update.Type).Msg("Broadcast channel full, dropping update")
	}
}

// SpectatorCount is the number of connections watching gameID.
func (h *Hub) SpectatorCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.gameClients[gameID])
}

func (h *Hub) OnMoveApplied(gameID string, ev session.MoveApplied) {
	h.BroadcastGameUpdate(GameUpdate{GameID: gameID, Type: UpdateMove, Data: ev})
}

func (h *Hub) OnGameTerminated(gameID string, result chess.GameResult) {
	h.BroadcastGameUpdate(GameUpdate{
		GameID: gameID,
		Type:   UpdateGameEnd,
		Data:   GameEnded{Result: result, Status: result.Status(), Score: result.Notation()},
	})
}

func (h *Hub) OnDrawOffered(gameID string, by chess.Color) {
	h.BroadcastGameUpdate(GameUpdate{
		GameID: gameID,
		Type:   UpdateDrawOffer,
		Data:   map[string]string{"by": by.String()},
	})
}

// WebSocketHandler subscribes the caller to ?gameId=. The first frame is
// the full game state.
func (s *Service) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		badRequest(w, "Missing gameId parameter")
		return
	}
	sess, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	playerID, identified := auth.PlayerFrom(r.Context())
	if !identified {
		playerID = "anonymous"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		hub:        s.hub,
		service:    s,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		gameID:     gameID,
		playerID:   playerID,
		identified: identified,
	}
	if data, err := json.Marshal(GameUpdate{GameID: gameID, Type: UpdateState, Data: s.gameView(sess)}); err == nil {
		client.send <- data
	}
	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// queue sends a frame to this client only, through the hub loop so it
// never races the hub closing the client.
func (c *Client) queue(update GameUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	select {
	case c.hub.direct <- directMessage{client: c, data: data}:
	case <-c.hub.done:
	}
}

// clientMessage is one frame from the client. Move frames carry the same
// fields as a REST move request.
type clientMessage struct {
	Type string `json:"type"`
	MakeMoveRequest
}

func (c *Client) fail(status int, msg string) {
	c.queue(GameUpdate{GameID: c.gameID, Type: UpdateError, Data: ErrorFrame{Status: status, Error: msg}})
}

func (c *Client) failWith(err error) {
	status, resp := c.service.classify(err, "ws:"+c.gameID)
	c.queue(GameUpdate{GameID: c.gameID, Type: UpdateError, Data: ErrorFrame{Status: status, Error: resp.Error, Reason: resp.Reason}})
}

// readPump handles incoming messages from the WebSocket
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error().Err(err).Str("gameID", c.gameID).Msg("WebSocket error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.fail(http.StatusBadRequest, "malformed message")
			continue
		}

		ctx := context.Background()
		switch msg.Type {
		case "ping":
			c.queue(GameUpdate{GameID: c.gameID, Type: UpdatePong})
		case "time_sync":
			ts, err := c.service.timeSync(ctx, c.gameID)
			if err != nil {
				c.failWith(err)
				continue
			}
			c.queue(GameUpdate{GameID: c.gameID, Type: UpdateTimeSync, Data: ts})
		case "move":
			c.handleMove(ctx, msg.MakeMoveRequest)
		case "resign":
			if !c.identified {
				c.fail(http.StatusUnauthorized, "player identity required")
				continue
			}
			if err := c.service.games.Resign(ctx, c.gameID, c.playerID); err != nil {
				c.failWith(err)
			}
		default:
			c.fail(http.StatusBadRequest, "unknown message type")
		}
	}
}

// handleMove submits a move for the connected player. Success is reported by
// the move frame every watcher of the game receives.
func (c *Client) handleMove(ctx context.Context, req MakeMoveRequest) {
	if !c.identified {
		c.fail(http.StatusUnauthorized, "player identity required")
		return
	}
	m, err := req.move()
	if err != nil {
		c.fail(http.StatusBadRequest, err.Error())
		return
	}
	if _, err := c.service.games.SubmitMove(ctx, c.gameID, c.playerID, m); err != nil {
		c.hub.logger.Debug().Err(err).Str("gameID", c.gameID).Str("player", c.playerID).Str("move", m.String()).Msg("Move rejected")
		c.failWith(err)
	}
}

// writePump handles sending messages to the WebSocket, one frame per update.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
