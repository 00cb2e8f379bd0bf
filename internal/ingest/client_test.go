package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhov/sessionkit/internal/telemetry"
)

func testBatch() telemetry.Batch {
	return telemetry.Batch{
		BatchID: "mtx_0011223344556677",
		Events: []telemetry.Event{
			{Type: telemetry.EventCartAdded, ProductID: "p1", ShopID: "s1"},
			{Type: telemetry.EventClick, ProductID: "p2"},
		},
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New("", 0, zerolog.Nop())
	assert.Error(t, err)
}

func TestSendPostsJSONBatch(t *testing.T) {
	var got telemetry.Batch
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), testBatch()))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "mtx_0011223344556677", got.BatchID)
	require.Len(t, got.Events, 2)
	assert.Equal(t, telemetry.EventCartAdded, got.Events[0].Type)
}

func TestSendRejectedStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, err)

	err = c.Send(context.Background(), testBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c, err := New(srv.URL, time.Second, zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, c.Send(context.Background(), testBatch()))
}

func TestSendHonorsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	c, err := New(srv.URL, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, c.Send(ctx, testBatch()))
}
