package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/REZ0AN/TaskPilot/internal/domain"
	"github.com/REZ0AN/TaskPilot/internal/events"
	"github.com/REZ0AN/TaskPilot/internal/workflow"
	apperrors "github.com/REZ0AN/TaskPilot/pkg/util/errorutil"
)

// flakyNotifier fails the first failures deliveries.
type flakyNotifier struct {
	mu       sync.Mutex
	disabled bool
	failures int
	messages []string
}

func (n *flakyNotifier) Enabled() bool { return !n.disabled }

func (n *flakyNotifier) Deliver(_ context.Context, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return len(n.messages) > n.failures
}

func runSignup(t *testing.T, f *fixture, notifier *flakyNotifier, email string) error {
	t.Helper()
	wf := NewSignupNotificationWorkflow(f.store.Users(), notifier, zap.NewNop())
	return f.engine().Execute(context.Background(), SignupDefinition, "evt-"+email, func(ctx context.Context, run *workflow.Run) error {
		return wf.Handle(ctx, run, events.UserSignupPayload{Email: email})
	})
}

func TestSignupMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"New User Signed Up: jo@example.com\n\nUser ID: u-1\nName: Jo",
		signupMessage(signupUser{ID: "u-1", Email: "jo@example.com", Name: "Jo"}))
	assert.Equal(t,
		"New User Signed Up: x@example.com\n\nUser ID: u-2\nName: N/A",
		signupMessage(signupUser{ID: "u-2", Email: "x@example.com"}))
}

func TestSignupNotificationDelivers(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.user("jo", domain.UserRoleDev)
	notifier := &flakyNotifier{}

	require.NoError(t, runSignup(t, f, notifier, user.Email))
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "User ID: jo")
}

func TestSignupNotificationRetriesUndelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.user("jo", domain.UserRoleDev)
	notifier := &flakyNotifier{failures: 1}

	require.NoError(t, runSignup(t, f, notifier, user.Email))
	assert.Len(t, notifier.messages, 2)
}

func TestSignupNotificationFailsWhenNeverDelivered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.user("jo", domain.UserRoleDev)
	notifier := &flakyNotifier{failures: 100}

	err := runSignup(t, f, notifier, user.Email)
	assert.ErrorIs(t, err, errNotificationNotDelivered)
	assert.Len(t, notifier.messages, 1+SignupDefinition.Retries)
}

func TestSignupNotificationUnknownUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	notifier := &flakyNotifier{}

	err := runSignup(t, f, notifier, "ghost@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	assert.True(t, workflow.IsNonRetriable(err))
	assert.Empty(t, notifier.messages)
}

func TestSignupNotificationSkipsUnconfiguredChannel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.user("jo", domain.UserRoleDev)
	notifier := &flakyNotifier{disabled: true}

	require.NoError(t, runSignup(t, f, notifier, user.Email))
	assert.Empty(t, notifier.messages)

	record, err := f.store.Runs().GetRun(context.Background(), workflow.RunID(SignupDefinition, "evt-"+user.Email))
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowRunCompleted, record.Status)
	assert.Equal(t, 1, record.Attempts)
}
