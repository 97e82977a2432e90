package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/middleware"
	"github.com/cppla/rollcall/utils"
)

// AuthController exposes operator token introspection and revocation.
type AuthController struct{}

func NewAuthController() *AuthController { return &AuthController{} }

// Me returns the operator behind the bearer token.
func (a *AuthController) Me(ctx *gin.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var expires *time.Time
	if claims.ExpiresAt != nil {
		expires = &claims.ExpiresAt.Time
	}
	utils.Success(ctx, gin.H{"operator": claims.Operator, "expires_at": expires})
}

// Revoke blocks the presented token for the rest of its lifetime.
func (a *AuthController) Revoke(ctx *gin.Context) {
	claims, ok := claimsFrom(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	if claims.ExpiresAt == nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "token has no expiry")
		return
	}
	utils.RevokeToken(ctx.Request.Context(), ctx.GetString(middleware.ContextTokenKey), claims.ExpiresAt.Time)
	utils.Success(ctx, gin.H{"revoked": true})
}

func claimsFrom(ctx *gin.Context) (*utils.Claims, bool) {
	v, ok := ctx.Get(middleware.ContextClaimsKey)
	if !ok {
		return nil, false
	}
	c, ok := v.(*utils.Claims)
	return c, ok && c != nil
}
