package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/septivank/asset-tracker/internal/auth"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
	"go.uber.org/zap"
)

// Publisher sends events to the message broker
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AlertGate reports whether an alert under key is due. It lets one alert
// through per key and interval.
type AlertGate interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ScopeAlert is published when a user's role cannot be bound to a scope
type ScopeAlert struct {
	UserID       string    `json:"user_id"`
	DeclaredRole string    `json:"declared_role"`
	Reason       string    `json:"reason"`
	DetectedAt   time.Time `json:"detected_at"`
}

// CallerService turns an authenticated session into a caller
type CallerService struct {
	repo       *repository.Repository
	publisher  Publisher
	gate       AlertGate
	routingKey string
	logger     *zap.Logger
}

// NewCallerService creates a new caller service. gate may be nil, in which
// case every unbound role lookup publishes an alert.
func NewCallerService(repo *repository.Repository, publisher Publisher, gate AlertGate, alertRoutingKey string, logger *zap.Logger) *CallerService {
	return &CallerService{
		repo:       repo,
		publisher:  publisher,
		gate:       gate,
		routingKey: alertRoutingKey,
		logger:     logger,
	}
}

// FromSession loads the user row of a session and binds its role. A role
// that cannot be bound yields a caller with the Denied role, not an error.
func (s *CallerService) FromSession(ctx context.Context, session auth.Session) (scope.Caller, error) {
	ctx = store.WithBearer(ctx, session.Token)

	user, err := s.repo.UserProfile(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return scope.Caller{}, fmt.Errorf("%w: no profile for user %s", ErrForbidden, session.UserID)
	}
	if err != nil {
		return scope.Caller{}, err
	}
	if !user.IsActive {
		return scope.Caller{}, fmt.Errorf("%w: user %s is inactive", ErrForbidden, session.UserID)
	}

	role, err := scope.ParseRole(user.Role, user.ClientID, user.EndCustomerID, user.ProjectID)
	if err != nil {
		s.logger.Warn("role could not be bound, denying all scoped reads",
			zap.String("user_id", user.ID.String()),
			zap.String("role", user.Role),
			zap.Error(err),
		)
		s.alert(ctx, ScopeAlert{
			UserID:       user.ID.String(),
			DeclaredRole: user.Role,
			Reason:       err.Error(),
			DetectedAt:   time.Now().UTC(),
		})
	}

	return scope.Caller{UserID: user.ID, Role: role, Token: session.Token}, nil
}

func (s *CallerService) alert(ctx context.Context, a ScopeAlert) {
	if s.publisher == nil {
		return
	}
	if s.gate != nil {
		due, err := s.gate.Allow(ctx, "unbound_scope:"+a.UserID)
		if err != nil {
			s.logger.Warn("alert gate unavailable, publishing anyway", zap.Error(err), zap.String("user_id", a.UserID))
		} else if !due {
			return
		}
	}
	if err := s.publisher.Publish(ctx, s.routingKey, a); err != nil {
		// Log error but don't fail the request
		s.logger.Error("failed to publish scope alert", zap.Error(err), zap.String("user_id", a.UserID))
	}
}
