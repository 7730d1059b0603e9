package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/chat-memory/internal/assembler"
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
	"github.com/rcliao/chat-memory/internal/tokenizer"
)

// quiet drops every record, so error values are never formatted.
var quiet = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))

type fakeCompleter struct {
	replies   []string
	errs      []error
	calls     int
	lastMsgs  []model.Message
	maxTokens int
}

func (f *fakeCompleter) Complete(ctx context.Context, msgs []model.Message, maxTokens int) (string, error) {
	i := f.calls
	f.calls++
	f.lastMsgs = msgs
	f.maxTokens = maxTokens
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return fmt.Sprintf("reply %d", i), nil
}

func newSession(t *testing.T, c Completer) (*Session, store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Dir: t.TempDir(), Logger: quiet})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	a, err := assembler.New(s, tokenizer.Approx{}, assembler.Options{Logger: quiet})
	require.NoError(t, err)
	return NewSession(s, a, c, quiet), s
}

func TestRespondWritesBackTurns(t *testing.T) {
	ctx := context.Background()
	fc := &fakeCompleter{replies: []string{"Hello there!", "Still here."}}
	sess, s := newSession(t, fc)

	_, err := s.AddMemory(ctx, store.AddParams{Text: "Be gentle.", Kind: model.KindCorePromptLine})
	require.NoError(t, err)

	r1, err := sess.Respond(ctx, "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", r1.Text)
	assert.Equal(t, "hi", r1.UserTurn.Text)
	assert.Equal(t, model.RoleAssistant, r1.AssistantTurn.Role)
	assert.Equal(t, assembler.DefaultReserve, fc.maxTokens)
	assert.Equal(t, []model.Message{
		{Role: model.RoleSystem, Content: "Be gentle."},
		{Role: model.RoleUser, Content: "hi"},
	}, fc.lastMsgs)

	_, err = sess.Respond(ctx, "are you there?")
	require.NoError(t, err)
	assert.Equal(t, []model.Message{
		{Role: model.RoleSystem, Content: "Be gentle."},
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "Hello there!"},
		{Role: model.RoleUser, Content: "are you there?"},
	}, fc.lastMsgs)

	turns, err := s.List(ctx, store.ListParams{Kinds: []model.Kind{model.KindConversationTurn}})
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "Still here.", turns[3].Text)
}

func TestRespondStoresNothingOnFailure(t *testing.T) {
	ctx := context.Background()
	fc := &fakeCompleter{errs: []error{errors.New("boom")}}
	sess, s := newSession(t, fc)

	_, err := sess.Respond(ctx, "hi")
	require.Error(t, err)

	all, err := s.List(ctx, store.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = sess.Respond(ctx, "   ")
	assert.Error(t, err)
}

func TestRetryCompleterRetriesTransientErrors(t *testing.T) {
	fc := &fakeCompleter{
		errs:    []error{errors.New("connection reset"), &openai.Error{StatusCode: 503}},
		replies: []string{"", "", "ok"},
	}
	rc := &RetryCompleter{Next: fc, MaxRetries: 3, InitialInterval: time.Millisecond, Logger: quiet}

	got, err := rc.Complete(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, fc.calls)
}

func TestRetryCompleterStopsOnPermanentError(t *testing.T) {
	fc := &fakeCompleter{errs: []error{&openai.Error{StatusCode: 400}}}
	rc := &RetryCompleter{Next: fc, MaxRetries: 3, InitialInterval: time.Millisecond, Logger: quiet}

	_, err := rc.Complete(context.Background(), nil, 10)
	var apiErr *openai.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 1, fc.calls)
}

func TestRetryCompleterGivesUp(t *testing.T) {
	transient := errors.New("timeout")
	fc := &fakeCompleter{errs: []error{transient, transient, transient}}
	rc := &RetryCompleter{Next: fc, MaxRetries: 2, InitialInterval: time.Millisecond, Logger: quiet}

	_, err := rc.Complete(context.Background(), nil, 10)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, fc.calls)
}

func TestRetryCompleterZeroRetriesMakesOneAttempt(t *testing.T) {
	transient := errors.New("timeout")
	fc := &fakeCompleter{errs: []error{transient, transient}, replies: []string{"", "ok"}}
	rc := &RetryCompleter{Next: fc, MaxRetries: 0, InitialInterval: time.Millisecond, Logger: quiet}

	_, err := rc.Complete(context.Background(), nil, 10)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 1, fc.calls)
}

func TestRetryCompleterNegativeUsesDefault(t *testing.T) {
	transient := errors.New("timeout")
	fc := &fakeCompleter{errs: []error{transient, transient, transient, transient, transient}}
	rc := &RetryCompleter{Next: fc, MaxRetries: -1, InitialInterval: time.Millisecond, Logger: quiet}

	_, err := rc.Complete(context.Background(), nil, 10)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, DefaultMaxRetries+1, fc.calls)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.True(t, Retryable(&openai.Error{StatusCode: 429}))
	assert.True(t, Retryable(&openai.Error{StatusCode: 502}))
	assert.False(t, Retryable(&openai.Error{StatusCode: 401}))
	assert.True(t, Retryable(ErrEmptyCompletion))
	assert.True(t, Retryable(errors.New("dial tcp: connection refused")))
}

func TestToChatMessages(t *testing.T) {
	out := toChatMessages([]model.Message{
		{Role: model.RoleSystem, Content: "s"},
		{Role: model.RoleUser, Content: "u"},
		{Role: model.RoleAssistant, Content: "a"},
	})
	require.Len(t, out, 3)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
}
