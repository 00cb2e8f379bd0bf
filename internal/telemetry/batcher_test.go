package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/avolkhov/sessionkit/internal/clock"
	"github.com/avolkhov/sessionkit/internal/telemetry"
	"github.com/avolkhov/sessionkit/internal/telemetry/mocks"
)

type batcherFixture struct {
	batcher  *telemetry.Batcher
	sender   *mocks.MockSender
	store    *mocks.MockDurableEventStore
	identity *mocks.MockIdentityProvider
	clk      *clock.Fake
}

func newFixture(t *testing.T, cfg telemetry.Config) *batcherFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &batcherFixture{
		sender:   mocks.NewMockSender(ctrl),
		store:    mocks.NewMockDurableEventStore(ctrl),
		identity: mocks.NewMockIdentityProvider(ctrl),
		clk:      clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	b, err := telemetry.New(cfg, f.sender, f.store, f.identity, f.clk, zerolog.Nop())
	require.NoError(t, err)
	f.batcher = b
	return f
}

func (f *batcherFixture) loggedIn(userID string) {
	f.identity.EXPECT().CurrentUserID().Return(userID).AnyTimes()
}

func TestRecordArmsTrailingFlush(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	f.batcher.Record(telemetry.EventImpression, "p1", "s1")

	status := f.batcher.Status()
	assert.Equal(t, telemetry.StateArmed, status.State)
	assert.Equal(t, 1, status.BufferLen)
}

func TestRecordWithoutUserIsDropped(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("")

	f.batcher.Record(telemetry.EventImpression, "p1", "s1")

	status := f.batcher.Status()
	assert.Equal(t, telemetry.StateIdle, status.State)
	assert.Zero(t, status.BufferLen)
}

func TestCooldownSuppressesDuplicateBursts(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	f.batcher.Record(telemetry.EventCartAdded, "p1", "s1")
	f.clk.Advance(200 * time.Millisecond)
	f.batcher.Record(telemetry.EventCartAdded, "p1", "s1")
	assert.Equal(t, 1, f.batcher.Status().BufferLen, "duplicate inside cooldown suppressed")

	f.clk.Advance(200 * time.Millisecond)
	f.batcher.Record(telemetry.EventCartRemoved, "p1", "s1")
	assert.Equal(t, 2, f.batcher.Status().BufferLen, "different type recorded")
}

func TestTimedFlushDeliversBatch(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	var sent telemetry.Batch
	f.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, batch telemetry.Batch) error {
			sent = batch
			return nil
		})
	f.store.EXPECT().Clear(gomock.Any()).Return(nil)

	f.batcher.Record(telemetry.EventClick, "p1", "s1")
	f.clk.Advance(telemetry.DefaultFlushInterval)

	require.Len(t, sent.Events, 1)
	assert.Equal(t, telemetry.EventClick, sent.Events[0].Type)
	assert.Equal(t, "p1", sent.Events[0].ProductID)
	assert.NotEmpty(t, sent.BatchID)

	status := f.batcher.Status()
	assert.Equal(t, telemetry.StateIdle, status.State)
	assert.Zero(t, status.BufferLen)
}

func TestSizeTriggerFlushesImmediately(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.MaxBufferSize = 3
	f := newFixture(t, cfg)
	f.loggedIn("u1")

	sent := make(chan telemetry.Batch, 1)
	f.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, batch telemetry.Batch) error {
			sent <- batch
			return nil
		})
	f.store.EXPECT().Clear(gomock.Any()).Return(nil)

	for i := 0; i < 3; i++ {
		f.batcher.Record(telemetry.EventImpression, fmt.Sprintf("p%d", i), "s1")
	}

	select {
	case batch := <-sent:
		assert.Len(t, batch.Events, 3)
	case <-time.After(time.Second):
		t.Fatal("size-triggered flush never sent")
	}
	assert.Eventually(t, func() bool { return f.batcher.Status().BufferLen == 0 },
		time.Second, time.Millisecond)
}

func TestBatchIDStableWithinTimeBucket(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	var ids []string
	f.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, batch telemetry.Batch) error {
			ids = append(ids, batch.BatchID)
			return nil
		}).Times(3)
	f.store.EXPECT().Clear(gomock.Any()).Return(nil).Times(3)

	// Two flushes inside one 30s bucket, one in the next.
	f.batcher.Record(telemetry.EventClick, "p1", "s1")
	require.NoError(t, f.batcher.Flush(context.Background()))

	f.clk.Advance(10 * time.Second)
	f.batcher.Record(telemetry.EventClick, "p2", "s1")
	require.NoError(t, f.batcher.Flush(context.Background()))

	f.clk.Advance(30 * time.Second)
	f.batcher.Record(telemetry.EventClick, "p3", "s1")
	require.NoError(t, f.batcher.Flush(context.Background()))

	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1], "same user, same bucket")
	assert.NotEqual(t, ids[1], ids[2], "later bucket")
}

func TestFlushWithEmptyBufferIsNoop(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())

	assert.NoError(t, f.batcher.Flush(context.Background()))
}

func TestRetryScheduleIsLinear(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	sendErr := errors.New("ingest unavailable")
	calls := 0
	f.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, telemetry.Batch) error {
			calls++
			return sendErr
		}).Times(3)
	var spilled telemetry.Spill
	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, spill telemetry.Spill) error {
			spilled = spill
			return nil
		})

	f.batcher.Record(telemetry.EventCartAdded, "p1", "s1")
	f.clk.Advance(telemetry.DefaultFlushInterval)
	require.Equal(t, 1, calls)
	assert.Equal(t, telemetry.StateRetryScheduled, f.batcher.Status().State)

	// First retry after 1 * RetryDelay.
	f.clk.Advance(9 * time.Second)
	require.Equal(t, 1, calls)
	f.clk.Advance(time.Second)
	require.Equal(t, 2, calls)

	// Second retry after 2 * RetryDelay; exhausts attempts and spills.
	f.clk.Advance(19 * time.Second)
	require.Equal(t, 2, calls)
	f.clk.Advance(time.Second)
	require.Equal(t, 3, calls)

	require.Len(t, spilled.Events, 1)
	assert.Equal(t, telemetry.EventCartAdded, spilled.Events[0].Type)

	status := f.batcher.Status()
	assert.Equal(t, telemetry.StateIdle, status.State)
	assert.Zero(t, status.BufferLen)
	assert.Zero(t, status.Attempts)
}

func TestSpillRoundTripAcrossRestart(t *testing.T) {
	cfg := telemetry.DefaultConfig()

	// First life: every attempt fails, events end up in the spill.
	f1 := newFixture(t, cfg)
	f1.loggedIn("u1")
	f1.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(errors.New("down")).Times(cfg.MaxAttempts)
	var spilled telemetry.Spill
	f1.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, spill telemetry.Spill) error {
			spilled = spill
			return nil
		})

	f1.batcher.Record(telemetry.EventCartAdded, "p1", "s1")
	f1.clk.Advance(time.Millisecond)
	f1.batcher.Record(telemetry.EventFavoriteAdded, "p2", "s1")
	f1.clk.Advance(cfg.FlushInterval)
	f1.clk.Advance(cfg.RetryDelay)
	f1.clk.Advance(2 * cfg.RetryDelay)

	require.Len(t, spilled.Events, 2)

	// Second life: the exact event set is restored into the buffer.
	f2 := newFixture(t, cfg)
	f2.store.EXPECT().Load(gomock.Any()).Return(spilled, nil)
	f2.store.EXPECT().Clear(gomock.Any()).Return(nil)

	require.NoError(t, f2.batcher.Start(context.Background()))

	status := f2.batcher.Status()
	assert.Equal(t, telemetry.StateArmed, status.State)
	assert.Equal(t, 2, status.BufferLen)
}

func TestStartWithNoSpill(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.store.EXPECT().Load(gomock.Any()).Return(telemetry.Spill{}, telemetry.ErrNoSpill)

	require.NoError(t, f.batcher.Start(context.Background()))
	assert.Equal(t, telemetry.StateIdle, f.batcher.Status().State)
}

func TestStartDiscardsExpiredSpill(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())

	stale := telemetry.Spill{
		Events:    []telemetry.Event{{Type: telemetry.EventClick, ProductID: "p1"}},
		Timestamp: f.clk.Now().Add(-25 * time.Hour),
	}
	f.store.EXPECT().Load(gomock.Any()).Return(stale, nil)
	f.store.EXPECT().Clear(gomock.Any()).Return(nil)

	require.NoError(t, f.batcher.Start(context.Background()))
	assert.Zero(t, f.batcher.Status().BufferLen)
}

func TestStartTruncatesOversizedSpill(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.MaxBufferSize = 2
	f := newFixture(t, cfg)

	big := telemetry.Spill{
		Events: []telemetry.Event{
			{Type: telemetry.EventClick, ProductID: "p1"},
			{Type: telemetry.EventClick, ProductID: "p2"},
			{Type: telemetry.EventClick, ProductID: "p3"},
		},
		Timestamp: f.clk.Now().Add(-time.Hour),
	}
	f.store.EXPECT().Load(gomock.Any()).Return(big, nil)
	f.store.EXPECT().Clear(gomock.Any()).Return(nil)

	require.NoError(t, f.batcher.Start(context.Background()))
	assert.Equal(t, 2, f.batcher.Status().BufferLen)
}

func TestEventsRecordedDuringFlightSurvive(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	f.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, telemetry.Batch) error {
			// A user keeps clicking while the batch is on the wire.
			f.batcher.Record(telemetry.EventClick, "p-late", "s1")
			return nil
		})
	f.store.EXPECT().Clear(gomock.Any()).Return(nil)

	f.batcher.Record(telemetry.EventClick, "p1", "s1")
	require.NoError(t, f.batcher.Flush(context.Background()))

	status := f.batcher.Status()
	assert.Equal(t, 1, status.BufferLen, "in-flight recording lands in the next batch")
	assert.Equal(t, telemetry.StateArmed, status.State)
}

func TestSaveFailureKeepsBuffer(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	f.sender.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(errors.New("down")).Times(3)
	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		Return(errors.New("disk full"))

	f.batcher.Record(telemetry.EventCartAdded, "p1", "s1")
	f.clk.Advance(telemetry.DefaultFlushInterval)
	f.clk.Advance(10 * time.Second)
	f.clk.Advance(20 * time.Second)

	assert.Equal(t, 1, f.batcher.Status().BufferLen, "memory stays the source of truth")
}

func TestSpillNowPersistsWithoutClearing(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	var spilled telemetry.Spill
	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, spill telemetry.Spill) error {
			spilled = spill
			return nil
		})

	f.batcher.Record(telemetry.EventImpression, "p1", "s1")
	f.batcher.SpillNow(context.Background())

	assert.Len(t, spilled.Events, 1)
	assert.Equal(t, 1, f.batcher.Status().BufferLen, "buffer untouched")
}

func TestCloseSpillsAndStopsRecording(t *testing.T) {
	f := newFixture(t, telemetry.DefaultConfig())
	f.loggedIn("u1")

	f.store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	f.batcher.Record(telemetry.EventImpression, "p1", "s1")
	f.batcher.Close(context.Background())

	f.batcher.Record(telemetry.EventImpression, "p2", "s1")
	assert.Equal(t, 1, f.batcher.Status().BufferLen, "records after close ignored")

	// Idempotent.
	f.batcher.Close(context.Background())
}

func TestConfigValidation(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	store := mocks.NewMockDurableEventStore(ctrl)
	identity := mocks.NewMockIdentityProvider(ctrl)

	tests := []struct {
		name   string
		mutate func(*telemetry.Config)
	}{
		{"zero flush interval", func(c *telemetry.Config) { c.FlushInterval = 0 }},
		{"zero cooldown", func(c *telemetry.Config) { c.CooldownWindow = 0 }},
		{"zero buffer", func(c *telemetry.Config) { c.MaxBufferSize = 0 }},
		{"zero attempts", func(c *telemetry.Config) { c.MaxAttempts = 0 }},
		{"zero retry delay", func(c *telemetry.Config) { c.RetryDelay = 0 }},
		{"zero spill age", func(c *telemetry.Config) { c.SpillMaxAge = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := telemetry.DefaultConfig()
			tt.mutate(&cfg)
			_, err := telemetry.New(cfg, sender, store, identity, clk, zerolog.Nop())
			assert.Error(t, err)
		})
	}

	_, err := telemetry.New(telemetry.DefaultConfig(), nil, store, identity, clk, zerolog.Nop())
	assert.Error(t, err, "sender required")
	_, err = telemetry.New(telemetry.DefaultConfig(), sender, nil, identity, clk, zerolog.Nop())
	assert.Error(t, err, "store required")
	_, err = telemetry.New(telemetry.DefaultConfig(), sender, store, nil, clk, zerolog.Nop())
	assert.Error(t, err, "identity required")
}
