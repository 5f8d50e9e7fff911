package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hmelo/skyarena-server/internal/auth"
	"github.com/hmelo/skyarena-server/internal/core"
	"github.com/hmelo/skyarena-server/internal/dispatch"
	"github.com/hmelo/skyarena-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the dispatcher.
type WSHandler struct {
	dispatcher  *dispatch.Dispatcher
	authService *auth.Service
	msgLimit    int
	log         *zerolog.Logger
}

// NewWSHandler builds the WebSocket endpoint handler. msgLimit caps one
// connection's requests per minute; zero disables the limit.
func NewWSHandler(d *dispatch.Dispatcher, authService *auth.Service, msgLimit int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{dispatcher: d, authService: authService, msgLimit: msgLimit, log: logger}
}

// Handle authenticates the handshake token, registers a session, and runs
// the read/write loops until either side goes away. Requests dispatch
// synchronously from the read loop, so one connection's requests are totally
// ordered.
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	outbox := newWSOutbox()
	sess, err := h.dispatcher.Connect(ctx, claims.PlayerID, outbox)
	if err != nil {
		_ = wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.KindSessionWelcome,
			Error: &proto.Error{Code: core.CodeFor(err), Msg: err.Error()},
		})
		conn.Close(websocket.StatusPolicyViolation, "connection rejected")
		return
	}
	defer func() {
		outbox.retire()
		h.dispatcher.Disconnect(sess)
	}()

	limiter := newRateLimiter(h.msgLimit)
	limiterStop := make(chan struct{})
	limiter.startReset(limiterStop)
	defer close(limiterStop)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, outbox)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("player_id", sess.Player.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.PlayerSession, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		if !limiter.allow() {
			h.log.Debug().Str("type", inbound.Type).Int64("player_id", sess.Player.ID).Msg("request dropped by rate limit")
			continue
		}
		h.dispatcher.Dispatch(ctx, sess, inbound)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, outbox *wsOutbox) error {
	for {
		select {
		case out := <-outbox.ch:
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
