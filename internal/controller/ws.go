package controller

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
)

// serveEvents streams registry events to a websocket client as JSON text
// messages until the client disconnects.
func (c *Controller) serveEvents(ctx *gin.Context) {
	events, cancel := c.registry.Subscribe(eventBuffer)
	defer cancel()

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("events upgrade failed")
		return
	}
	defer conn.Close()

	// reads only detect the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debug().Str("remote", ctx.Request.RemoteAddr).Msg("events client connected")
	for {
		select {
		case <-gone:
			log.Debug().Str("remote", ctx.Request.RemoteAddr).Msg("events client disconnected")
			return
		case <-ctx.Request.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("events write failed")
				return
			}
		}
	}
}
