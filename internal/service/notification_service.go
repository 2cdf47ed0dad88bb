package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/notify"
	"github.com/REZ0AN/TaskPilot/internal/repository"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

// SignupDefinition identifies the signup notification workflow.
var SignupDefinition = workflow.Definition{ID: "on-user-signup", Retries: 2}

var errNotificationNotDelivered = errors.New("signup notification not delivered")

// SignupNotificationWorkflow tells operators about new accounts.
type SignupNotificationWorkflow struct {
	users    repository.UserRepository
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewSignupNotificationWorkflow creates the workflow.
func NewSignupNotificationWorkflow(users repository.UserRepository, notifier notify.Notifier, logger *zap.Logger) *SignupNotificationWorkflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignupNotificationWorkflow{users: users, notifier: notifier, logger: logger}
}

// signupUser is the part of the account the message needs. The password
// hash never reaches the step store.
type signupUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Handle runs one attempt.
func (w *SignupNotificationWorkflow) Handle(ctx context.Context, run *workflow.Run, payload events.UserSignupPayload) error {
	user, err := workflow.Step(ctx, run, "get-user", func(ctx context.Context) (signupUser, error) {
		if payload.Email == "" {
			return signupUser{}, workflow.NonRetriable(apperrors.NewValidationError("email missing from event", nil))
		}
		found, err := w.users.GetByEmail(ctx, payload.Email)
		if errors.Is(err, pgx.ErrNoRows) {
			return signupUser{}, workflow.NonRetriable(apperrors.NewNotFound("user", map[string]any{"email": payload.Email}))
		}
		if err != nil {
			return signupUser{}, err
		}
		return signupUser{ID: found.ID, Email: found.Email, Name: found.Name}, nil
	})
	if err != nil {
		return err
	}

	sent, err := workflow.Step(ctx, run, "send-notification", func(ctx context.Context) (bool, error) {
		if !w.notifier.Enabled() {
			w.logger.Warn("notification channel not configured; skipping signup notification",
				zap.String("run_id", run.ID),
				zap.String("user_id", user.ID))
			return false, nil
		}
		if !w.notifier.Deliver(ctx, signupMessage(user)) {
			return false, errNotificationNotDelivered
		}
		return true, nil
	})
	if err != nil {
		return err
	}

	if sent {
		w.logger.Info("signup notification sent", zap.String("run_id", run.ID), zap.String("user_id", user.ID))
	}
	return nil
}

func signupMessage(user signupUser) string {
	name := user.Name
	if name == "" {
		name = "N/A"
	}
	return fmt.Sprintf("New User Signed Up: %s\n\nUser ID: %s\nName: %s", user.Email, user.ID, name)
}
