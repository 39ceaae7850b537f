package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"talkbridge/internal/apperrors"
)

type PushClient interface {
	PushText(ctx context.Context, to, text string) error
}

// DispatchService pushes a text payload to the single configured recipient.
// Failures are returned as ErrSinkDispatch so callers can observe them, but
// nothing here retries: by the time a dispatch runs, the record it carries
// is already acknowledged.
type DispatchService struct {
	log         *zap.Logger
	client      PushClient
	recipientID string
}

func NewDispatchService(log *zap.Logger, client PushClient, recipientID string) *DispatchService {
	return &DispatchService{
		log:         log,
		client:      client,
		recipientID: recipientID,
	}
}

func (s *DispatchService) Push(ctx context.Context, text string) error {
	if err := s.client.PushText(ctx, s.recipientID, text); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrSinkDispatch, err)
	}

	s.log.Debug("Message pushed", zap.String("recipient_id", s.recipientID))

	return nil
}
