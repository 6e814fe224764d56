package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, rec Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func TestLog_WritesRecord(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	rec := Record{ID: "r1", Kind: KindEstimate, Question: "Divorce", Priced: true, Price: 1500, Outcome: "ok"}
	require.NoError(t, Log{}.Notify(context.Background(), rec))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Contains(t, entry.Message, "Question : Divorce")
	fields := entry.ContextMap()
	assert.Equal(t, "r1", fields["record_id"])
	assert.Equal(t, int64(1500), fields["price"])
}

func TestMulti_AttemptsEverySink(t *testing.T) {
	ctx := context.Background()
	rec := Record{ID: "r2"}

	failing := new(mockNotifier)
	failing.On("Notify", ctx, rec).Return(errors.New("smtp down"))
	ok := new(mockNotifier)
	ok.On("Notify", ctx, rec).Return(nil)

	err := Multi{failing, ok}.Notify(ctx, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Notify(context.Background(), Record{}))
}
