package controllers

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/rollcall/bot"
	"github.com/cppla/rollcall/utils"
)

// SecretHeader carries the secret registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u bot.Update) error
}

// WebhookController receives Telegram updates pushed to the webhook URL.
type WebhookController struct {
	handler UpdateHandler
	secret  string
}

// NewWebhookController creates a new WebhookController. An empty secret
// disables the header check.
func NewWebhookController(h UpdateHandler, secret string) *WebhookController {
	return &WebhookController{handler: h, secret: secret}
}

// Receive handles one update. Telegram redelivers on any non-2xx answer, so
// processing errors are logged and still acknowledged.
func (w *WebhookController) Receive(ctx *gin.Context) {
	if w.secret != "" && subtle.ConstantTimeCompare([]byte(ctx.GetHeader(SecretHeader)), []byte(w.secret)) != 1 {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "invalid webhook secret")
		return
	}
	var u bot.Update
	if err := ctx.ShouldBindJSON(&u); err != nil {
		utils.Sugar.Warnf("webhook: undecodable update: %v", err)
		utils.Success(ctx, nil)
		return
	}
	// the update finishes even if Telegram hangs up first
	if err := w.handler.HandleUpdate(context.WithoutCancel(ctx.Request.Context()), u); err != nil {
		utils.Sugar.Warnf("webhook: update %d failed: %v", u.UpdateID, err)
	}
	utils.Success(ctx, nil)
}
