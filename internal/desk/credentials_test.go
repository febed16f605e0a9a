package desk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/domain"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

func TestRefreshReplacesAccessToken(t *testing.T) {
	f := newFakeDesk(t)
	store, _ := newTestStack(f, refreshableCredential("stale"))

	require.NoError(t, store.Refresh(context.Background()))

	assert.Equal(t, "fresh", store.Current().AccessToken)
	assert.Equal(t, "refresh", store.Current().RefreshToken)
	assert.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestRefreshMissingCredentials(t *testing.T) {
	f := newFakeDesk(t)
	store, _ := newTestStack(f, domain.Credential{AccessToken: "stale", ClientID: "id"})

	err := store.Refresh(context.Background())

	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apperrors.AuthMissingCredentials, authErr.Reason)
	assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)
	assert.EqualValues(t, 0, f.refreshCalls.Load())
	assert.Equal(t, "stale", store.Current().AccessToken)
}

func TestRefreshRejected(t *testing.T) {
	f := newFakeDesk(t)
	f.refreshStatus = http.StatusBadRequest
	store, _ := newTestStack(f, refreshableCredential("stale"))

	err := store.Refresh(context.Background())

	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apperrors.AuthExchangeRejected, authErr.Reason)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
	assert.Equal(t, "stale", store.Current().AccessToken)
}

func TestRefreshRejectedWithErrorBody(t *testing.T) {
	server := newJSONServer(t, http.StatusOK, `{"error":"invalid_code"}`)
	store := NewTokenStore(refreshableCredential("stale"), server.URL, TokenStoreDependencies{Logger: zap.NewNop()})

	err := store.Refresh(context.Background())

	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apperrors.AuthExchangeRejected, authErr.Reason)
	assert.Equal(t, "stale", store.Current().AccessToken)
}

func TestRefreshTransportFailure(t *testing.T) {
	f := newFakeDesk(t)
	store, _ := newTestStack(f, refreshableCredential("stale"))
	f.server.Close()

	err := store.Refresh(context.Background())

	var authErr *apperrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apperrors.AuthTransport, authErr.Reason)
}

func TestRefreshStaleSkipsWhenAlreadyReplaced(t *testing.T) {
	f := newFakeDesk(t)
	store, _ := newTestStack(f, refreshableCredential("fresh"))

	require.NoError(t, store.RefreshStale(context.Background(), "older"))
	assert.EqualValues(t, 0, f.refreshCalls.Load())
}

func TestRefreshStaleCollapsesConcurrentCallers(t *testing.T) {
	f := newFakeDesk(t)
	store, _ := newTestStack(f, refreshableCredential("stale"))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.RefreshStale(context.Background(), "stale")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.refreshCalls.Load())
	assert.Equal(t, "fresh", store.Current().AccessToken)
}

func TestRefreshStaleOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)
	store := NewTokenStore(refreshableCredential("stale"), server.URL, TokenStoreDependencies{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- store.RefreshStale(ctx, "stale") }()
	<-started
	cancel()
	close(release)

	require.NoError(t, <-first)
	require.NoError(t, store.RefreshStale(context.Background(), "stale"))
	assert.Equal(t, "fresh", store.Current().AccessToken)
}
