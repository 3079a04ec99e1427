package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/predicta-labs/predicta_api/internal/middleware"
)

const (
	eventAuth    = "auth"
	eventMessage = "message"
	eventError   = "error"

	maxDecodeErrors = 5
)

// Authenticator maps a session token to a user id.
type Authenticator func(ctx context.Context, token string) (userID string, ok bool)

type authPayload struct {
	Token string `json:"token"`
}

// Handler serves /ws and a plain /up liveness probe.
func (h *Hub) Handler(authenticate Authenticator) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ws := websocket.Server{
		// browsers connect cross-origin; access control is the session token
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			h.serveConn(conn, authenticate)
		},
	}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	})
	return mux
}

func (h *Hub) serveConn(conn *websocket.Conn, authenticate Authenticator) {
	connID := uuid.NewString()
	p := newPeer(conn)
	h.register(connID, p)
	defer func() {
		h.unregister(connID)
		_ = conn.Close()
	}()

	req := conn.Request()
	ctx := req.Context()
	if token := handshakeToken(req); token != "" {
		if userID, ok := authenticate(ctx, token); ok {
			h.authenticate(connID, userID)
			h.logger.Debug("realtime client authenticated", slog.String("conn_id", connID), slog.String("user_id", userID))
		} else {
			h.logger.Debug("realtime handshake token rejected", slog.String("conn_id", connID))
		}
	}

	decodeErrors := 0
	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("realtime connection closed", slog.String("conn_id", connID), slog.Any("error", err))
			}
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			decodeErrors++
			_ = p.write(Frame{Event: eventError, Message: "Invalid frame"})
			if decodeErrors >= maxDecodeErrors {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Event {
		case eventAuth:
			h.handleAuth(ctx, connID, p, frame, authenticate)
		case eventMessage:
			if h.userOf(connID) == "" {
				_ = p.write(Frame{Event: eventError, Message: "Unauthorized"})
				continue
			}
			_ = p.write(Frame{Event: eventMessage, Data: frame.Data})
		default:
			_ = p.write(Frame{Event: eventError, Message: "Unsupported event"})
		}
	}
}

func (h *Hub) handleAuth(ctx context.Context, connID string, p *peer, frame Frame, authenticate Authenticator) {
	var payload authPayload
	if len(frame.Data) > 0 {
		_ = json.Unmarshal(frame.Data, &payload)
	}
	userID, ok := "", false
	if token := strings.TrimSpace(payload.Token); token != "" {
		userID, ok = authenticate(ctx, token)
	}
	if !ok {
		_ = p.write(Frame{Event: eventError, Message: "Unauthorized"})
		return
	}
	h.authenticate(connID, userID)
	data, _ := json.Marshal(map[string]string{"userId": userID})
	_ = p.write(Frame{Event: eventAuth, Data: data})
}

func handshakeToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := middleware.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
