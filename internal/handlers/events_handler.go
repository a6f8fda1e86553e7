package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/auth"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/validation"
)

func (a *API) listEvents(c *gin.Context) {
	typ := events.Type(c.Query("type"))
	switch typ {
	case "", events.TypeGeneral, events.TypeQuiz, events.TypePhotography:
	default:
		writeError(c, apperr.Invalid("invalid_event_type", "type must be general, quiz or photography"))
		return
	}
	list, err := a.Events.List(c.Request.Context(), typ)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []*events.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": list})
}

func (a *API) getEvent(c *gin.Context) {
	e, err := a.Events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (a *API) createEvent(c *gin.Context) {
	var req validation.CreateEventRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	id := req.EventID
	if id == "" {
		id = uuid.NewString()
	}
	e := req.Event(id, auth.UserID(c), a.nowFunc().UTC())
	if err := a.Events.Create(c.Request.Context(), e); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (a *API) deleteEvent(c *gin.Context) {
	if err := a.Events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// closeEvent queues winner determination for an event that has ended.
func (a *API) closeEvent(c *gin.Context) {
	ctx := c.Request.Context()
	e, err := a.Events.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !e.Ended(a.nowFunc()) {
		writeError(c, events.ErrNotEnded)
		return
	}
	msg := aws.Message{Type: aws.MessageEventClosed, EventID: e.ID, UserID: auth.UserID(c), CorrelationID: uuid.NewString()}
	if err := a.Publisher.Publish(ctx, msg); err != nil {
		writeError(c, apperr.Internal("enqueue_failed", err))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "eventId": e.ID, "correlationId": msg.CorrelationID})
}

func (a *API) register(c *gin.Context) {
	res, err := a.Registration.RegisterDirect(c.Request.Context(), c.Param("id"), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if res.Fresh() {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
