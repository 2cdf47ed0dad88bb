package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/config"
	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/events"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

var testAuthConfig = config.AuthConfig{
	JWTSecret:             "test-secret",
	AccessTokenTTLMinutes: 60,
	BcryptCost:            4,
	CookieName:            "token",
}

func newAuthService(f *fixture, dispatcher events.Dispatcher) *AuthService {
	return NewAuthService(testAuthConfig, AuthDependencies{
		UserRepo:   f.store.Users(),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
}

func TestRegisterCreatesDevAndAnnouncesSignup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dispatcher := &recordingDispatcher{}
	svc := newAuthService(f, dispatcher)

	session, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Jo",
		Email:    "  Jo@Example.com ",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", session.User.Email)
	assert.Equal(t, domain.UserRoleDev, session.User.Role)
	assert.NotEqual(t, "correct horse", session.User.PasswordHash)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	published := dispatcher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventUserSignup, published[0].Type)
	var payload events.UserSignupPayload
	require.NoError(t, published[0].Decode(&payload))
	assert.Equal(t, "jo@example.com", payload.Email)
}

func TestRegisterRejectsDuplicatesAndBadInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := newAuthService(f, nil)
	_, err := svc.Register(context.Background(), RegisterInput{Name: "Jo", Email: "jo@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Name: "Jo", Email: "JO@example.com", Password: "password1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "password1"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = svc.Register(context.Background(), RegisterInput{Email: "new@example.com", Password: "short"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestRegisterSurvivesPublishFailure(t *testing.T) {
	t.Parallel()

	svc := newAuthService(newFixture(t), &recordingDispatcher{err: errors.New("redis down")})
	_, err := svc.Register(context.Background(), RegisterInput{Email: "jo@example.com", Password: "password1"})
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := newAuthService(f, nil)
	_, err := svc.Register(context.Background(), RegisterInput{Email: "jo@example.com", Password: "password1"})
	require.NoError(t, err)

	session, err := svc.Login(context.Background(), "JO@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", session.User.Email)

	_, err = svc.Login(context.Background(), "jo@example.com", "wrong-password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = svc.Login(context.Background(), "ghost@example.com", "password1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = svc.Login(context.Background(), "", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.user("jo", domain.UserRoleDev)
	svc := newAuthService(f, nil)

	updated, err := svc.UpdateUser(context.Background(), "jo", UserUpdateInput{
		Role:   ptr("sdev"),
		Skills: []string{" Go ", "AWS"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UserRoleSdev, updated.Role)
	assert.Equal(t, []string{"Go", "AWS"}, updated.Skills)

	stored, err := svc.Profile(context.Background(), "jo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "AWS"}, stored.Skills)

	_, err = svc.UpdateUser(context.Background(), "jo", UserUpdateInput{Role: ptr("intern")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = svc.UpdateUser(context.Background(), "jo", UserUpdateInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = svc.UpdateUser(context.Background(), "ghost", UserUpdateInput{Role: ptr("admin")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
