package controller

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/pixelctl/internal/fleet"
	"github.com/danmuck/pixelctl/internal/protocol"
	"github.com/danmuck/pixelctl/internal/protocol/frame"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IndexedFrameRequest is the body of POST /frames/indexed. W selects 4-byte
// RGBW palette entries.
type IndexedFrameRequest struct {
	Data           []byte   `json:"data"`
	Palette        []byte   `json:"palette"`
	EasingInterval *uint32  `json:"easing_interval,omitempty"`
	W              bool     `json:"w"`
	Targets        []string `json:"targets,omitempty"`
}

type AudioRequest struct {
	URI     string   `json:"uri"`
	Channel uint32   `json:"channel"`
	Targets []string `json:"targets,omitempty"`
}

type InputRequest struct {
	Type    protocol.InputType `json:"type"`
	Value   int32              `json:"value"`
	Targets []string           `json:"targets,omitempty"`
}

type ConfigRequest struct {
	protocol.FirmwareConfig
	Targets []string `json:"targets,omitempty"`
}

func (c *Controller) RegisterRoutes() {
	c.routesOnce.Do(c.registerRoutes)
}

func (c *Controller) registerRoutes() {
	routes := c.router
	routes.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"uptime":     time.Since(c.appeared).String(),
			"controller": c.cfg.Name,
			"version":    version,
		})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.GET("/ready", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"ready":      true,
			"uptime":     time.Since(c.appeared).String(),
			"controller": c.cfg.Name,
			"udp":        c.conn.LocalAddr().String(),
			"version":    version,
		})
	})

	routes.GET("/devices", func(ctx *gin.Context) {
		phash := c.Phash()
		ctx.JSON(http.StatusOK, gin.H{
			"devices":      c.registry.Devices(),
			"drifted":      c.registry.Drifted(phash),
			"stale":        c.registry.Stale(time.Now(), c.cfg.StaleAfter),
			"config_phash": phash,
		})
	})

	routes.GET("/devices/:host/logs", func(ctx *gin.Context) {
		logs, err := c.registry.Logs(ctx.Param("host"))
		if err != nil {
			ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"logs": logs})
	})

	routes.DELETE("/devices/:host", func(ctx *gin.Context) {
		if err := c.registry.Forget(ctx.Param("host")); err != nil {
			ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	routes.GET("/config", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"firmware_config": c.Firmware()})
	})

	routes.POST("/config", func(ctx *gin.Context) {
		var req ConfigRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		phash, err := c.ApplyConfig(ctx.Request.Context(), &req.FirmwareConfig, req.Targets)
		if err != nil && !errors.Is(err, ErrNoTargets) {
			ctx.JSON(statusFor(err), gin.H{"error": err.Error(), "config_phash": phash})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "config_phash": phash})
	})

	routes.GET("/resends", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"pending": c.resend.List()})
	})

	routes.POST("/frames/rgb", func(ctx *gin.Context) {
		data, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f := &protocol.RGBFrame{Data: data}
		if raw := ctx.Query("easing_interval"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "easing_interval: " + err.Error()})
				return
			}
			f.EasingInterval = protocol.Uint32(uint32(v))
		}
		sent, err := c.SendRGB(ctx.Request.Context(), f, splitTargets(ctx.QueryArray("target")))
		c.sendResult(ctx, sent, err)
	})

	routes.POST("/frames/indexed", func(ctx *gin.Context) {
		var req IndexedFrameRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p := &protocol.Packet{}
		if req.W {
			p.WFrame = &protocol.WFrame{Data: req.Data, Palette: req.Palette, EasingInterval: req.EasingInterval}
		} else {
			p.Frame = &protocol.Frame{Data: req.Data, Palette: req.Palette, EasingInterval: req.EasingInterval}
		}
		sent, err := c.Broadcast(ctx.Request.Context(), req.Targets, p)
		c.sendResult(ctx, sent, err)
	})

	routes.POST("/audio", func(ctx *gin.Context) {
		var req AudioRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p := &protocol.Packet{AudioFrame: &protocol.AudioFrame{
			URI:     protocol.String(req.URI),
			Channel: protocol.Uint32(req.Channel),
		}}
		sent, err := c.Broadcast(ctx.Request.Context(), req.Targets, p)
		c.sendResult(ctx, sent, err)
	})

	routes.POST("/input", func(ctx *gin.Context) {
		var req InputRequest
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p := &protocol.Packet{InputEvent: &protocol.InputEvent{
			Type:  req.Type.Ptr(),
			Value: protocol.Int32(req.Value),
		}}
		sent, err := c.Broadcast(ctx.Request.Context(), req.Targets, p)
		c.sendResult(ctx, sent, err)
	})

	routes.GET("/ws/events", c.serveEvents)
}

func (c *Controller) sendResult(ctx *gin.Context, sent int, err error) {
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error(), "sent": sent})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "sent": sent})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, fleet.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNoTargets):
		return http.StatusConflict
	case errors.Is(err, frame.ErrFrameTooLarge),
		errors.Is(err, frame.ErrPixelAlignment),
		errors.Is(err, frame.ErrInvalidLayout):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
