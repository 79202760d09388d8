package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type WebhookReceiver interface {
	HandleWebhook(r *http.Request) error
	// webhook のパスに含まれるべき秘密の値
	WebhookSecret() string
}

// NewRouter はヘルスチェックと、webhook が有効な場合は Telegram の受け口を持つ
func NewRouter(webhook WebhookReceiver) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	if webhook != nil {
		r.POST("/telegram/webhook/:secret", func(c *gin.Context) {
			if !validSecret(webhook.WebhookSecret(), c.Param("secret")) {
				c.AbortWithStatus(http.StatusNotFound)
				return
			}
			if err := webhook.HandleWebhook(c.Request); err != nil {
				slog.Error("HandleWebhook failed", slog.Any("err", err))
				c.AbortWithStatus(http.StatusBadRequest)
				return
			}
			c.Status(http.StatusOK)
		})
	}
	return r
}

// 秘密が未設定なら何も受け付けない
func validSecret(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
