// AngelaMos | 2026
// events_test.go

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(MovieCreated, MovieEvent{ID: "m1", Title: "Matrix", IsActive: true})
	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, MovieCreated, env.Type)
	assert.False(t, env.OccurredAt.IsZero())

	var got MovieEvent
	require.NoError(t, env.Decode(&got))
	assert.Equal(t, "Matrix", got.Title)
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	Emit(context.Background(), rec, AccountRegistered, AccountRegisteredEvent{Email: "a@b.c"})
	Emit(context.Background(), rec, MovieUpdated, MovieEvent{ID: "m1"})

	assert.Equal(t, []string{AccountRegistered, MovieUpdated}, rec.Types())
	assert.Len(t, rec.Events(), 2)
}

func TestEmitToleratesNilAndNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, MovieCreated, nil)
		Emit(context.Background(), Noop{}, MovieCreated, MovieEvent{})
	})
}

type ctxPublisher struct {
	err      error
	ctxErr   error
	deadline bool
}

func (p *ctxPublisher) Publish(ctx context.Context, _ string, _ any) error {
	p.ctxErr = ctx.Err()
	_, p.deadline = ctx.Deadline()
	return p.err
}

func TestEmitOutlivesRequestContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &ctxPublisher{err: errors.New("broker down")}
	assert.NotPanics(t, func() {
		Emit(ctx, pub, MovieCreated, MovieEvent{ID: "m1"})
	})

	assert.NoError(t, pub.ctxErr)
	assert.True(t, pub.deadline)
}

func TestDispatch(t *testing.T) {
	env, err := NewEnvelope(AccountPasswordReset, PasswordResetEvent{Email: "a@b.c"})
	require.NoError(t, err)
	body, err := json.Marshal(env)
	require.NoError(t, err)

	var seen string
	err = dispatch(context.Background(), body, func(_ context.Context, e Envelope) error {
		var ev PasswordResetEvent
		require.NoError(t, e.Decode(&ev))
		seen = ev.Email
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", seen)

	err = dispatch(context.Background(), []byte("{"), func(context.Context, Envelope) error {
		return nil
	})
	assert.Error(t, err)

	boom := errors.New("boom")
	err = dispatch(context.Background(), body, func(context.Context, Envelope) error { return boom })
	assert.ErrorIs(t, err, boom)
}
