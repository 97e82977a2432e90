package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/middleware"
	"github.com/cppla/rollcall/utils"
)

// CheckInController records check-ins and member sightings on behalf of an operator.
type CheckInController struct {
	ledger  *ledger.Ledger
	batches ledger.BatchFilter
}

// NewCheckInController creates a new controller instance.
func NewCheckInController(l *ledger.Ledger, batches ledger.BatchFilter) *CheckInController {
	return &CheckInController{ledger: l, batches: batches}
}

type checkInRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	BatchID     string `json:"batch_id"`
}

// Record registers today's check-in for a member.
func (c *CheckInController) Record(ctx *gin.Context) {
	var req checkInRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "user_id is required")
		return
	}
	group := middleware.GroupFrom(ctx)
	name := utils.DisplayName(req.DisplayName)

	res, filtered, err := c.ledger.Submit(ctx.Request.Context(), c.batches, group, ledger.UserID(req.UserID), name, req.BatchID)
	if err != nil && !errors.Is(err, ledger.ErrPersistence) {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to record check-in")
		return
	}

	outcome := res.Outcome.String()
	if filtered {
		outcome = "batch_repeat"
	}
	utils.Success(ctx, gin.H{
		"outcome": outcome,
		"name":    res.Name,
		"date":    res.Date,
		"time":    res.Time,
		"streak":  res.Streak,
		"warning": persistWarning(err),
	})
}

type memberRequest struct {
	UserID      int64  `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

// Observe registers a member sighting. Statuses other than member and
// administrator are accepted and ignored.
func (c *CheckInController) Observe(ctx *gin.Context) {
	var req memberRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "user_id is required")
		return
	}
	switch req.Status {
	case "", "member", "administrator":
	default:
		utils.Success(ctx, gin.H{"observed": false})
		return
	}
	group := middleware.GroupFrom(ctx)
	err := c.ledger.Observe(ctx.Request.Context(), group, ledger.UserID(req.UserID), utils.DisplayName(req.DisplayName))
	if err != nil && !errors.Is(err, ledger.ErrPersistence) {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to record member")
		return
	}
	utils.Success(ctx, gin.H{"observed": true, "warning": persistWarning(err)})
}

// Members lists every known member of the group.
func (c *CheckInController) Members(ctx *gin.Context) {
	utils.Success(ctx, c.ledger.Members(middleware.GroupFrom(ctx)))
}
