package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/middleware"
	"github.com/cppla/rollcall/models"
	"github.com/cppla/rollcall/utils"
)

// Announcer posts a content item into the group chat.
type Announcer interface {
	Announce(ctx context.Context, group ledger.GroupID, item models.ContentItem) error
}

// ContentController exposes the daily content rotation.
type ContentController struct {
	rotation  *ledger.Rotation
	announcer Announcer
}

// NewContentController creates a new ContentController. announcer may be nil.
func NewContentController(r *ledger.Rotation, announcer Announcer) *ContentController {
	return &ContentController{rotation: r, announcer: announcer}
}

// Next returns today's item for the group, advancing the rotation on the
// first call of the day. With ?announce=true the item is also posted to the chat.
func (c *ContentController) Next(ctx *gin.Context) {
	group := middleware.GroupFrom(ctx)
	item, err := c.rotation.Next(ctx.Request.Context(), group)
	if status, code, msg, failed := contentFailure(err); failed {
		utils.Error(ctx, status, code, msg)
		return
	}

	announced := false
	if ctx.Query("announce") == "true" && c.announcer != nil {
		if aerr := c.announcer.Announce(ctx.Request.Context(), group, item); aerr != nil {
			utils.Sugar.Warnf("announce content to group %d failed: %v", group, aerr)
		} else {
			announced = true
		}
	}
	utils.Success(ctx, gin.H{
		"item":      item,
		"state":     c.rotation.State(group),
		"announced": announced,
		"warning":   persistWarning(err),
	})
}

// contentFailure maps a rotation error to its HTTP answer. A persistence
// failure is not a failure here: the item is still served with a warning.
func contentFailure(err error) (status, code int, msg string, failed bool) {
	switch {
	case err == nil, errors.Is(err, ledger.ErrPersistence):
		return 0, 0, "", false
	case errors.Is(err, ledger.ErrExhausted):
		return http.StatusConflict, 40930, "content list exhausted", true
	case errors.Is(err, ledger.ErrContentUnavailable):
		return http.StatusServiceUnavailable, 50330, "content list unavailable", true
	}
	return http.StatusInternalServerError, 50032, "failed to rotate content", true
}

// State returns the group's rotation pointer.
func (c *ContentController) State(ctx *gin.Context) {
	utils.Success(ctx, c.rotation.State(middleware.GroupFrom(ctx)))
}
