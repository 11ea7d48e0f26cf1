package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizhub-service/internal/app"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/domain"
)

// StatsStreamHandler pushes the signed-in user's local stats row over a
// websocket and accepts profile edits on the same connection.
type StatsStreamHandler struct {
	stats    *app.StatsService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewStatsStreamHandler(stats *app.StatsService, logger *zap.Logger) *StatsStreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsStreamHandler{
		stats: stats,
		log:   logger,
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

type subscribedPayload struct {
	UID string `json:"uid"`
}

// ServeWS upgrades the request and streams "row" messages until the client
// disconnects. Clients may send "avatar" and "rename" messages; each is
// answered with a "result" message.
func (h *StatsStreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr401(w, r)
	if !ok {
		return
	}

	updates, cancel, err := h.stats.Watch(r.Context(), sess.UID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.String("uid", sess.UID), zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", zap.String("uid", sess.UID), zap.Error(err))
				// unblocks ReadJSON in the read loop
				conn.Close()
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{UID: sess.UID}}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case row, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "row", Payload: row}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !deliver(send, writerDone, h.handle(r, sess, inbound)) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer. It reports false once the writer has
// exited, since nothing will drain send after that.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *StatsStreamHandler) handle(r *http.Request, sess auth.Session, in inboundMessage) outboundMessage[any] {
	var res domain.WriteResult
	switch in.Type {
	case "avatar":
		var p avatarBody
		if err := json.Unmarshal(in.Payload, &p); err != nil || domain.ValidateStruct(p) != nil {
			return errorMessage("invalid avatar payload")
		}
		res = h.stats.ChangeAvatar(r.Context(), sess.UID, p.Avatar)
	case "rename":
		var p nameBody
		if err := json.Unmarshal(in.Payload, &p); err != nil || domain.ValidateStruct(p) != nil {
			return errorMessage("invalid rename payload")
		}
		res = h.stats.Rename(r.Context(), sess.UID, p.Name)
	default:
		return errorMessage("unsupported message type")
	}

	body := resultPayload{WriteResult: res}
	if res.Err != nil {
		body.Error = res.Err.Error()
	}
	return outboundMessage[any]{Type: "result", Payload: body}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
