package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"talkbridge/internal/apperrors"
	"talkbridge/internal/model"
	"talkbridge/internal/service"
)

type IngestService interface {
	ProcessBatch(ctx context.Context, events []model.WebhookEvent) []service.IngestResult
}

type WebhookHandler struct {
	BaseHandler

	log *zap.Logger
	svc IngestService
}

func NewWebhookHandler(log *zap.Logger, svc IngestService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: BaseHandler{},
		log:         log,
		svc:         svc,
	}
}

// Receive handles one webhook delivery. Only a malformed batch is a client
// error; individual append failures are logged by the service and the
// delivery is still answered with 200, so the platform does not retry it.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var batch model.WebhookBatch

	if err := c.ShouldBindJSON(&batch); err != nil {
		h.log.Warn("Rejected malformed webhook batch", zap.Error(err))

		c.JSON(http.StatusBadRequest, ResponseWithMessage{
			Status:  StatusErr,
			Message: apperrors.ErrMalformedWebhook.Error(),
		})

		return
	}

	results := h.svc.ProcessBatch(c.Request.Context(), batch.Events)

	var appended, skipped, failed int

	for _, result := range results {
		switch {
		case result.Err != nil:
			failed++
		case result.Skipped:
			skipped++
		default:
			appended++
		}
	}

	c.JSON(http.StatusOK, ResponseWithData{
		Status: StatusSuccess,
		Data: gin.H{
			"received": len(results),
			"appended": appended,
			"skipped":  skipped,
			"failed":   failed,
		},
	})
}
