package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/middleware"
	"github.com/cppla/rollcall/utils"
)

const maxLeaderboardLimit = 100

// ReportController serves the read side of a group: report, pending list and leaderboard.
type ReportController struct {
	ledger  *ledger.Ledger
	counter MemberCounter
}

// NewReportController creates a new ReportController. counter may be nil, in
// which case callers must pass ?total=.
func NewReportController(l *ledger.Ledger, counter MemberCounter) *ReportController {
	return &ReportController{ledger: l, counter: counter}
}

// Report returns today's numeric summary, named pending list and top five.
func (r *ReportController) Report(ctx *gin.Context) {
	total, ok := groupTotal(ctx, r.counter)
	if !ok {
		return
	}
	utils.Success(ctx, r.ledger.Report(middleware.GroupFrom(ctx), total))
}

// Pending returns today's pending view.
func (r *ReportController) Pending(ctx *gin.Context) {
	total, ok := groupTotal(ctx, r.counter)
	if !ok {
		return
	}
	utils.Success(ctx, r.ledger.Pending(middleware.GroupFrom(ctx), total))
}

// Leaderboard returns the group's standings, ?limit= rows (default five).
func (r *ReportController) Leaderboard(ctx *gin.Context) {
	limit := ledger.DefaultTop
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLeaderboardLimit {
			utils.Error(ctx, http.StatusBadRequest, 40022, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	utils.Success(ctx, r.ledger.Top(middleware.GroupFrom(ctx), limit))
}

// Submitted lists who has checked in today.
func (r *ReportController) Submitted(ctx *gin.Context) {
	utils.Success(ctx, r.ledger.Submitted(middleware.GroupFrom(ctx)))
}
