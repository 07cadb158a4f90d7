package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/logging"
	"github.com/septivank/asset-tracker/internal/scope"
	"go.uber.org/zap"
)

// AccessChange is published by the backend when a membership row or a
// user's role binding changes
type AccessChange struct {
	EventID  string     `json:"event_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Scope    scope.Kind `json:"scope,omitempty"`
	RefID    *uuid.UUID `json:"ref_id,omitempty"`
	IsActive *bool      `json:"is_active,omitempty"`
}

// Invalidator drops everything cached for a user
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// AccessEvents handles access change messages
type AccessEvents struct {
	invalidator Invalidator
	logger      *zap.Logger
}

// NewAccessEvents creates a new access event handler
func NewAccessEvents(invalidator Invalidator, logger *zap.Logger) *AccessEvents {
	return &AccessEvents{invalidator: invalidator, logger: logger}
}

// HandleMessage invalidates the cached state of the user an access change
// concerns
func (e *AccessEvents) HandleMessage(ctx context.Context, routingKey string, body []byte) error {
	var msg AccessChange
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal access change: %w", err)
	}
	if msg.UserID == uuid.Nil {
		return fmt.Errorf("access change %q has no user_id", msg.EventID)
	}
	switch msg.Scope {
	case "", scope.KindClient, scope.KindEndCustomer, scope.KindProject:
	default:
		return fmt.Errorf("access change %q has unknown scope %q", msg.EventID, msg.Scope)
	}

	reqLogger := logging.WithRequestID(e.logger, msg.EventID)
	reqLogger.Info("processing access change",
		zap.String("routing_key", routingKey),
		zap.String("user_id", msg.UserID.String()),
		zap.String("scope", string(msg.Scope)),
	)

	if err := e.invalidator.Invalidate(ctx, msg.UserID); err != nil {
		reqLogger.Error("failed to invalidate user state", zap.Error(err))
		return fmt.Errorf("failed to invalidate state of user %s: %w", msg.UserID, err)
	}
	return nil
}
