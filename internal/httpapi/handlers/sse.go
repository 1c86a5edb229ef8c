package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// streamThread relays appended turns over SSE until the client goes
// away. Requires the live-update store; returns 503 without it.
func (h *Handler) streamThread(c *gin.Context, threadID string) {
	if h.Redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    50301,
			"message": "live updates unavailable",
			"data":    nil,
		})
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	turns, cancel, err := h.Redis.SubscribeThread(ctx, threadID)
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"subscribe failed\"}\n\n")
		return
	}
	defer cancel()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeJSON := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case t, ok := <-turns:
			if !ok {
				writeJSON("done", gin.H{"type": "done"})
				return
			}
			writeJSON("turn", gin.H{
				"type": "turn",
				"turn": t,
			})

		case <-ticker.C:
			writeJSON("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case <-ctx.Done():
			return
		}
	}
}
