package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type WSHandler struct {
	service  *app.QuizService
	tokens   *auth.TokenService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, tokens *auth.TokenService, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		tokens:  tokens,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades an authenticated request and runs one player's session
// over the socket. The next question is dealt on connect and after every
// answer; "next" and "restart" let the client drive explicitly.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	claims, err := h.tokens.Parse(raw)
	if err != nil {
		http.Error(w, "missing or invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.Subject

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					h.log.Debug("ws write failed", zap.String("user_id", userID), zap.Error(err))
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	emit := func(msgType string, payload any) bool {
		select {
		case send <- outboundMessage[any]{Type: msgType, Payload: payload}:
			return true
		case <-ctx.Done():
			return false
		}
	}
	emitErr := func(err error) bool {
		if statusFor(err) == http.StatusInternalServerError {
			h.log.Error("ws request failed", zap.String("user_id", userID), zap.Error(err))
		}
		return emit("error", errorPayload{Message: clientMessage(err)})
	}
	deal := func() bool {
		res, err := h.service.Next(ctx, userID)
		if err != nil {
			return emitErr(err)
		}
		if res.Completed {
			return emit("completed", res)
		}
		return emit("question", res)
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.log.Debug("ws connected", zap.String("user_id", userID))
	ok := deal()
	for ok {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerRequest
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				ok = emit("error", errorPayload{Message: "invalid answer payload"})
				continue
			}
			out, err := h.service.Answer(ctx, userID, payload.Answer)
			if err != nil {
				ok = emitErr(err)
				continue
			}
			ok = emit("answerResult", out) && deal()
		case "next":
			ok = deal()
		case "restart":
			progress, err := h.service.Restart(ctx, userID)
			if err != nil {
				ok = emitErr(err)
				continue
			}
			ok = emit("restarted", progress) && deal()
		default:
			ok = emit("error", errorPayload{Message: "unsupported message type"})
		}
	}

	close(send)
	<-writerDone
	h.log.Debug("ws disconnected", zap.String("user_id", userID))
}
