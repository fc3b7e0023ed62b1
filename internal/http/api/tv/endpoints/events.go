package endpoints

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/http/api"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /tv/:board/events
// Upgrades to a websocket that receives a refresh message whenever the
// board's content may have changed.
func (d *DisplayController) events(ctx *gin.Context) {
	board := model.Board(ctx.Param("board"))
	if !d.deps.Schedule.Catalog().HasBoard(board) {
		apiErr := api.FromError(apperr.NotFound("unknown board %q", board))
		ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message, "kind": apiErr.Kind})
		return
	}
	if d.deps.Hub == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are not available"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("board", string(board)).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	msgs, unsubscribe := d.deps.Hub.Subscribe(board)
	defer unsubscribe()

	log.Info().Str("board", string(board)).Str("remote", ctx.ClientIP()).Msg("display connected")
	defer log.Info().Str("board", string(board)).Str("remote", ctx.ClientIP()).Msg("display disconnected")

	// Displays never send anything; reading surfaces the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("board", string(board)).Msg("websocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
