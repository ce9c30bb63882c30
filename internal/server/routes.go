package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"colorflow-server/internal/ai"
	"colorflow-server/internal/colorflow"
)

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/health", s.healthHandler)

	mux.HandleFunc("/api/ai", s.aiTextHandler)

	mux.HandleFunc("/api/create-pi-payment", s.createPaymentHandler)
	mux.HandleFunc("/api/pi-approve", s.approvePaymentHandler)
	mux.HandleFunc("/api/pi-complete", s.completePaymentHandler)
	mux.HandleFunc("/api/pi-config", s.piConfigHandler)
	mux.HandleFunc("/api/webhook", s.webhookHandler)

	mux.HandleFunc("/ws", s.websocketHandler)

	// Wrap the mux with CORS and panic recovery middleware
	return s.corsMiddleware(recoveryMiddleware(mux))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*") // Replace "*" with specific origins if needed
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Webhook-Signature")
		w.Header().Set("Access-Control-Allow-Credentials", "false") // Set to "true" if credentials are required

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Proceed with the next handler
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health()

	counts, err := s.persistenceManager.CountPaymentsByStatus()
	if err != nil {
		log.Printf("Failed to count payments for health check: %v", err)
	} else {
		for status, count := range counts {
			health["payments_"+status] = fmt.Sprintf("%d", count)
		}
	}

	respondJSON(w, http.StatusOK, health)
}

// respondJSON writes a JSON body with the given status
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// respondError writes the standard error envelope
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, APIErrorResponse{
		Success: false,
		Error:   code,
		Message: message,
	})
}

// requirePost rejects non-POST methods with 405
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Use POST")
		return false
	}
	return true
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"}, // TODO: make environment-specific
	})
	if err != nil {
		http.Error(w, "Failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "Server closing")

	ctx := r.Context()

	connectionID := uuid.New().String()
	log.Printf("New connection: %s", connectionID)
	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)
	defer func() {
		token := s.connectionManager.GetTokenByConnection(connectionID)

		// Remove connection
		s.connectionManager.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		log.Printf("Connection closed: %s", connectionID)

		// Flush the profile so a dropped socket never loses purchases
		if token != "" {
			active, err := s.gameManager.GetSessionByToken(token)
			if err != nil {
				return
			}
			if err := s.persistenceManager.SaveProfile(active.Snapshot()); err != nil {
				log.Printf("Failed to flush profile on disconnect: %v", err)
			}
		}
	}()

	for {
		// Read from client
		msgType, data, err := socket.Read(ctx)

		if err != nil {
			log.Printf("Connection %s read error: %v", connectionID, err)
			return
		}

		if msgType != websocket.MessageText {
			log.Printf("Non-text input from %s", connectionID)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Invalid JSON from %s: %v", connectionID, err)
			s.sendError(socket, ctx, "Invalid JSON")
			continue
		}

		log.Printf("Message Type '%s' from %s", msg.Type, connectionID)
		s.connectionHealth.UpdateActivity(connectionID)

		if err := ValidateMessageType(msg.Type); err != nil {
			s.sendError(socket, ctx, err.Error())
			continue
		}

		// Route the message
		switch msg.Type {
		case "ping":
			s.handlePing(socket, ctx, connectionID, msg.Payload)

		case "hello":
			s.handleHello(socket, ctx, connectionID, msg.Payload)

		case "start_game":
			s.handleStartGame(socket, ctx, connectionID, msg.Payload)

		case "match_points":
			s.handleMatchPoints(socket, ctx, connectionID, msg.Payload)

		case "activate_powerup":
			s.handleActivatePowerUp(socket, ctx, connectionID, msg.Payload)

		case "open_store":
			s.handleStoreToggle(socket, ctx, connectionID, true)

		case "close_store":
			s.handleStoreToggle(socket, ctx, connectionID, false)

		case "purchase_item":
			s.handlePurchaseItem(socket, ctx, connectionID, msg.Payload)

		case "watch_ad":
			s.handleWatchAd(socket, ctx, connectionID)

		case "set_audio":
			s.handleSetAudio(socket, ctx, connectionID, msg.Payload)

		case "get_state":
			s.handleGetState(socket, ctx, connectionID)
		}
	}
}

func (s *Server) handlePing(socket *websocket.Conn, ctx context.Context, connectionID string, msg json.RawMessage) {
	log.Printf("Ping from %s", connectionID)

	// No payload to parse

	// Pong
	response := ServerMessage{
		Type:    "pong",
		Payload: struct{}{},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send pong to %s: %v", connectionID, err)
	}
}

// handleHello registers a player or restores an existing session. A token
// in the payload resumes that session; otherwise a fresh player id and
// session are minted and the profile is loaded from the store.
func (s *Server) handleHello(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req HelloRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendError(socket, ctx, "Invalid hello payload")
			return
		}
	}

	// Resume an existing session
	if req.Token != "" {
		session, err := s.sessionManager.GetSession(req.Token)
		if err != nil {
			s.sendError(socket, ctx, err.Error())
			return
		}

		oldConnectionID := s.connectionManager.AddConnectionWithToken(connectionID, socket, req.Token)
		if oldConnectionID != "" && oldConnectionID != connectionID {
			oldConn := s.connectionManager.GetConnection(oldConnectionID)
			if oldConn != nil {
				s.sendMessage(oldConn, context.Background(), ServerMessage{
					Type: "disconnected_elsewhere",
					Payload: struct {
						Message string `json:"message"`
					}{
						Message: "You connected on another device",
					},
				})
				oldConn.Close(websocket.StatusNormalClosure, "Connected from another device")
			}
			s.connectionManager.RemoveConnection(oldConnectionID)
		}

		active, err := s.gameManager.GetSessionByToken(req.Token)
		if err != nil {
			s.sendError(socket, ctx, err.Error())
			return
		}

		active.WithSession(func(engine *colorflow.Session) error {
			s.sendMessage(socket, ctx, ServerMessage{
				Type: "hello_ok",
				Payload: HelloResponse{
					Token:      req.Token,
					PlayerID:   session.PlayerID,
					HighScore:  engine.HighScore,
					Coins:      engine.Inventory.Coins,
					AudioMuted: active.AudioMuted,
				},
			})
			return nil
		})
		return
	}

	// Fresh player
	username := req.Username
	if username == "" {
		username = "player"
	}

	playerID := uuid.New().String()
	rec, err := s.persistenceManager.LoadOrCreateProfile(playerID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	active, token, err := s.gameManager.RegisterPlayer(playerID, username, rec)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.sessionManager.StoreSession(SessionInfo{
		Token:    token,
		PlayerID: playerID,
		Username: username,
	})
	s.connectionManager.AddConnectionWithToken(connectionID, socket, token)

	active.WithSession(func(engine *colorflow.Session) error {
		s.sendMessage(socket, ctx, ServerMessage{
			Type: "hello_ok",
			Payload: HelloResponse{
				Token:      token,
				PlayerID:   playerID,
				HighScore:  engine.HighScore,
				Coins:      engine.Inventory.Coins,
				AudioMuted: active.AudioMuted,
			},
		})
		return nil
	})
}

// sessionForConnection resolves the engine session behind a socket.
func (s *Server) sessionForConnection(socket *websocket.Conn, ctx context.Context, connectionID string) *ActiveSession {
	token := s.connectionManager.GetTokenByConnection(connectionID)
	if token == "" {
		s.sendError(socket, ctx, "NOT_REGISTERED: Send hello first")
		return nil
	}

	active, err := s.gameManager.GetSessionByToken(token)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return nil
	}
	return active
}

func (s *Server) handleStartGame(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req StartGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid start_game payload")
		return
	}

	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	err := active.WithSession(func(engine *colorflow.Session) error {
		return engine.Start(colorflow.Difficulty(req.Difficulty))
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.pushState(socket, ctx, active)
}

func (s *Server) handleMatchPoints(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req MatchPointsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid match_points payload")
		return
	}

	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	var result colorflow.MatchResult
	var leveledTo int
	err := active.WithSession(func(engine *colorflow.Session) error {
		var err error
		result, err = engine.MatchPoints(req.A, req.B)
		if err == nil && result.LeveledUp {
			leveledTo = engine.Level
		}
		return err
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	active.WithSession(func(engine *colorflow.Session) error {
		s.sendMessage(socket, ctx, ServerMessage{
			Type: "match_result",
			Payload: MatchResultMessage{
				Result: result,
				State:  engine.GetClientState(),
			},
		})
		return nil
	})

	// Level-ups get a line of flavor text pushed separately so the match
	// response never waits on the AI queue.
	if leveledTo > 0 {
		go s.pushChallengeText(active, leveledTo)
	}
}

func (s *Server) pushChallengeText(active *ActiveSession, level int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var score int
	active.WithSession(func(engine *colorflow.Session) error {
		score = engine.Score
		return nil
	})

	text := s.aiClient.Fetch(ctx, ai.TextRequest{
		Kind:  ai.KindLevelUp,
		Level: level,
		Score: score,
	})

	connID := s.connectionManager.GetConnectionByToken(active.Token)
	if connID == "" {
		return
	}
	conn := s.connectionManager.GetConnection(connID)
	if conn == nil {
		return
	}

	s.sendMessage(conn, context.Background(), ServerMessage{
		Type: "challenge_text",
		Payload: ChallengeTextMessage{
			Level: level,
			Text:  text,
		},
	})
}

func (s *Server) handleActivatePowerUp(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req ActivatePowerUpRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid activate_powerup payload")
		return
	}

	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	err := active.WithSession(func(engine *colorflow.Session) error {
		return engine.ActivatePowerUp(colorflow.PowerUpKind(req.Kind))
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.pushState(socket, ctx, active)
}

func (s *Server) handleStoreToggle(socket *websocket.Conn, ctx context.Context, connectionID string, open bool) {
	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	err := active.WithSession(func(engine *colorflow.Session) error {
		if open {
			return engine.OpenStore()
		}
		engine.CloseStore()
		return nil
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.pushState(socket, ctx, active)
}

func (s *Server) handlePurchaseItem(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req PurchaseItemRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid purchase_item payload")
		return
	}

	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	err := active.WithSession(func(engine *colorflow.Session) error {
		return engine.PurchaseItem(req.ItemID)
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	// Purchases persist immediately, not just on disconnect
	if err := s.persistenceManager.SaveProfile(active.Snapshot()); err != nil {
		log.Printf("Failed to persist purchase for %s: %v", active.PlayerID, err)
	}

	s.pushState(socket, ctx, active)
}

func (s *Server) handleWatchAd(socket *websocket.Conn, ctx context.Context, connectionID string) {
	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	err := active.WithSession(func(engine *colorflow.Session) error {
		return engine.WatchAd()
	})
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.pushState(socket, ctx, active)
}

// handleSetAudio persists the player's mute preference so it survives
// reconnects alongside the rest of the profile.
func (s *Server) handleSetAudio(socket *websocket.Conn, ctx context.Context, connectionID string, payload json.RawMessage) {
	var req SetAudioRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "Invalid set_audio payload")
		return
	}

	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	active.WithSession(func(engine *colorflow.Session) error {
		active.AudioMuted = req.Muted
		return nil
	})

	if err := s.persistenceManager.SaveProfile(active.Snapshot()); err != nil {
		log.Printf("Failed to persist audio setting for %s: %v", active.PlayerID, err)
	}

	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type:    "settings",
		Payload: SettingsMessage{AudioMuted: req.Muted},
	}); err != nil {
		log.Printf("Failed to send settings to %s: %v", connectionID, err)
	}
}

func (s *Server) handleGetState(socket *websocket.Conn, ctx context.Context, connectionID string) {
	active := s.sessionForConnection(socket, ctx, connectionID)
	if active == nil {
		return
	}

	s.pushState(socket, ctx, active)
}

// pushState sends the session's current client view
func (s *Server) pushState(socket *websocket.Conn, ctx context.Context, active *ActiveSession) {
	active.WithSession(func(engine *colorflow.Session) error {
		return s.sendMessage(socket, ctx, ServerMessage{
			Type: "state",
			Payload: StateMessage{
				State: engine.GetClientState(),
			},
		})
	})
}

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("Marshal error: %w", err)
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}
