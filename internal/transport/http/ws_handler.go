package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/domain"
)

const (
	msgStart       = "start"
	msgStartCustom = "startCustom"
	msgAnswer      = "answer"
	msgNext        = "next"
	msgPrevious    = "previous"
	msgFinish      = "finish"
	msgComplete    = "complete"
	msgReset       = "reset"

	msgState  = "state"
	msgResult = "result"
	msgError  = "error"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type startPayload struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Limit      int    `json:"limit"`
}

type startCustomPayload struct {
	QuizID string `json:"quizId"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: msgError, Payload: errorPayload{Message: err.Error(), Code: statusFor(err)}}
}

// ServeWS upgrades the request and drives the caller's quiz session. Every
// session transition, including timer ticks, is pushed as a state message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel, err := h.service.Subscribe(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write failed", "user_id", userID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: msgState, Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	h.logger.Debug("ws connected", "user_id", userID)
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.dispatch(r, userID, inbound); ok {
			send <- reply
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	cancel()
	released := h.service.Release(ctx, userID)
	h.logger.Debug("ws disconnected", "user_id", userID, "session_released", released)
}

// dispatch runs one inbound command. State changes reach the client through
// the subscription, so only results and errors produce a direct reply.
func (h *WSHandler) dispatch(r *http.Request, userID string, in inboundMessage) (outboundMessage, bool) {
	ctx := r.Context()
	var err error

	switch in.Type {
	case msgStart:
		var p startPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return errorMessage(err), true
		}
		difficulty, derr := domain.ParseDifficulty(p.Difficulty)
		if derr != nil {
			return errorMessage(derr), true
		}
		_, err = h.service.StartCategory(ctx, userID, p.Category, difficulty, p.Limit)
	case msgStartCustom:
		var p startCustomPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return errorMessage(err), true
		}
		_, err = h.service.StartCommunity(ctx, userID, p.QuizID)
	case msgAnswer:
		var p answerPayload
		if err := decodePayload(in.Payload, &p); err != nil {
			return errorMessage(err), true
		}
		_, err = h.service.Answer(ctx, userID, p.Option)
	case msgNext:
		_, err = h.service.Next(ctx, userID)
	case msgPrevious:
		_, err = h.service.Previous(ctx, userID)
	case msgFinish:
		_, err = h.service.Finish(ctx, userID)
	case msgComplete:
		outcome, cerr := h.service.Complete(ctx, userID)
		if cerr != nil {
			return errorMessage(cerr), true
		}
		return outboundMessage{Type: msgResult, Payload: outcome}, true
	case msgReset:
		h.service.Reset(ctx, userID)
	default:
		return errorMessage(domain.Validationf("unsupported message type %q", in.Type)), true
	}

	if err != nil {
		return errorMessage(err), true
	}
	return outboundMessage{}, false
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.Validationf("invalid payload: %v", err)
	}
	return nil
}
