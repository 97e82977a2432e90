package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/middleware"
	"github.com/cppla/rollcall/utils"
)

// MemberCounter reports how many people are in a group right now.
type MemberCounter interface {
	MemberCount(ctx context.Context, group ledger.GroupID) (int, error)
}

// groupTotal resolves the member total from ?total= or the transport.
func groupTotal(ctx *gin.Context, counter MemberCounter) (int, bool) {
	group := middleware.GroupFrom(ctx)
	if raw := ctx.Query("total"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.Error(ctx, http.StatusBadRequest, 40020, "total must be a non-negative integer")
			return 0, false
		}
		return n, true
	}
	if counter == nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "total is required when no transport is configured")
		return 0, false
	}
	n, err := counter.MemberCount(ctx.Request.Context(), group)
	if err != nil {
		utils.Sugar.Warnf("member count for group %d failed: %v", group, err)
		utils.Error(ctx, http.StatusBadGateway, 50210, "member count unavailable")
		return 0, false
	}
	return n, true
}

// persistWarning is attached to otherwise successful answers when the change
// is applied in memory but not yet stored.
func persistWarning(err error) string {
	if errors.Is(err, ledger.ErrPersistence) {
		return "saved in memory only; storage write failed"
	}
	return ""
}
