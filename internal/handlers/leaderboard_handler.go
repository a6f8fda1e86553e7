package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/auth"
	"github.com/imrishuroy/go-idempotent-contests/internal/leaderboard"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

const defaultTopUsers = 20

func (a *API) topUsers(c *gin.Context) {
	limit := defaultTopUsers
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(c, apperr.Invalid("invalid_limit", "limit must be between 1 and 100"))
			return
		}
		limit = n
	}
	list, err := a.Users.TopByXP(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []users.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (a *API) eventLeaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	eventID := c.Param("eventId")
	if _, err := a.Events.Get(ctx, eventID); err != nil {
		writeError(c, err)
		return
	}
	entries, err := a.Leaderboard.ListByEvent(ctx, eventID)
	if err != nil {
		writeError(c, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"eventId": eventID, "entries": entries})
}

func (a *API) me(c *gin.Context) {
	u, err := a.Users.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
