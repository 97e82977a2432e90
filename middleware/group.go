package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/ledger"
	"github.com/cppla/rollcall/utils"
)

// ContextGroupKey holds the ledger.GroupID taken from the :group_id path parameter.
const ContextGroupKey = "group_id"

// GroupRequired parses :group_id and rejects groups the deployment does not serve.
func GroupRequired(allowed func(int64) bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, err := strconv.ParseInt(ctx.Param("group_id"), 10, 64)
		if err != nil || id == 0 {
			utils.Abort(ctx, http.StatusBadRequest, 40010, "invalid group id")
			return
		}
		if allowed != nil && !allowed(id) {
			utils.Abort(ctx, http.StatusNotFound, 40410, "group not found")
			return
		}
		ctx.Set(ContextGroupKey, ledger.GroupID(id))
		ctx.Next()
	}
}

// GroupFrom returns the group set by GroupRequired.
func GroupFrom(ctx *gin.Context) ledger.GroupID {
	v, _ := ctx.Get(ContextGroupKey)
	g, _ := v.(ledger.GroupID)
	return g
}
