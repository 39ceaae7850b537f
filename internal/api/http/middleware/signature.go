package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"talkbridge/internal/apperrors"
	"talkbridge/pkg/line"
)

// ChannelSignature verifies the platform's HMAC signature over the raw
// request body before the webhook handler runs. The body is restored for
// downstream binding.
func ChannelSignature(channelSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(line.SignatureHeader)
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": apperrors.ErrInvalidSignature.Error(),
			})

			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": apperrors.ErrMalformedWebhook.Error(),
			})

			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !line.ValidateSignature(channelSecret, body, signature) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  "error",
				"message": apperrors.ErrInvalidSignature.Error(),
			})

			return
		}

		c.Next()
	}
}
