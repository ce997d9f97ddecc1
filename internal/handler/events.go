package handler

import (
	"io"
	"net/http"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// EventsHandler streams change events to dashboards over SSE.
type EventsHandler struct {
	sub    notify.Subscriber
	resync time.Duration
}

func NewEventsHandler(sub notify.Subscriber, resync time.Duration) *EventsHandler {
	if resync <= 0 {
		resync = 30 * time.Second
	}
	return &EventsHandler{sub: sub, resync: resync}
}

// Stream godoc
// @Summary Eventos de mudança em tempo real (Server-Sent Events)
// @Description Cada evento "change" traz entity/id/kind; o painel deve recarregar o registro.
// @Description Um evento "resync" periódico pede recarga completa.
// @Tags painel
// @Produce text/event-stream
// @Security BearerAuth
// @Router /v1/events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	events, err := h.sub.Subscribe(ctx)
	if err != nil {
		log.Error().Err(err).Msg("events: subscribe failed")
		c.JSON(http.StatusServiceUnavailable, apierror.WithCode("unavailable", "Eventos indisponíveis no momento"))
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.resync)
	defer ticker.Stop()

	// a connect is itself a resync: the client has missed everything so far
	c.SSEvent("resync", gin.H{"at": time.Now().UTC()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", ev)
			return true
		case t := <-ticker.C:
			c.SSEvent("resync", gin.H{"at": t.UTC()})
			return true
		}
	})
}
