package coordinator

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/phanda-client/internal/api"
	"github.com/robalobadob/phanda-client/internal/api/apitest"
	"github.com/robalobadob/phanda-client/internal/auth"
	"github.com/robalobadob/phanda-client/internal/store"
)

type stack struct {
	srv     *apitest.Server
	kv      store.Store
	session *auth.Session
	coord   *Coordinator
}

func newStack(t *testing.T) *stack {
	t.Helper()
	srv := apitest.New(t)
	kv := store.NewMemoryStore()
	vault := auth.NewTokenVault(kv)
	client := api.New(api.Options{BaseURL: srv.URL(), Timeout: 5 * time.Second}, vault)
	session := auth.New(kv, vault, client)
	coord := New(Options{Store: kv, Remote: client, Session: session, Catalog: embedded(t)})
	return &stack{srv: srv, kv: kv, session: session, coord: coord}
}

func (s *stack) login(t *testing.T) {
	t.Helper()
	_, err := s.session.Login(context.Background(), api.Credentials{Email: apitest.SeedEmail, Password: apitest.SeedPassword})
	require.NoError(t, err)
}

func TestSignedInPlaySyncsWithServer(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	s.login(t)
	s.coord.Initialize(ctx)

	assert.Len(t, s.coord.Languages(), 2)
	require.Len(t, s.coord.Levels(), 3)

	assert.True(t, s.coord.CompleteLevel(ctx, 1))
	snap := s.coord.Snapshot()
	assert.Equal(t, 150, snap.Gems)
	assert.Equal(t, []int{1}, snap.Languages["english"].CompletedLevels)
	assert.Equal(t, 150, s.session.User().TotalGems)
	assert.Equal(t, 1, s.srv.CountCalls(http.MethodPost, "/progress/complete-level"))

	assert.True(t, s.coord.UseHint(ctx))
	assert.Equal(t, 130, s.coord.Snapshot().Gems)

	s.coord.AwardGems(ctx, 5)
	assert.Equal(t, 135, s.coord.Snapshot().Gems)
	assert.Empty(t, s.coord.LastError())
}

func TestServerOutageFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	s.login(t)
	s.coord.Initialize(ctx)

	s.srv.Fail(http.MethodPost, "/progress/complete-level", http.StatusServiceUnavailable)
	assert.True(t, s.coord.CompleteLevel(ctx, 1))
	assert.Equal(t, 150, s.coord.Snapshot().Gems)
	assert.Contains(t, s.coord.LastError(), "complete-level")
	assert.True(t, s.session.IsAuthenticated(), "an outage is not a sign-out")
}

func TestExpiredSessionDropsToGuestPlay(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	s.login(t)
	s.coord.Initialize(ctx)

	s.srv.ExpireSessions()
	s.srv.RevokeRefreshTokens()

	assert.True(t, s.coord.CompleteLevel(ctx, 1))
	assert.False(t, s.session.IsAuthenticated())
	assert.Equal(t, 150, s.coord.Snapshot().Gems)

	calls := s.srv.CountCalls(http.MethodPost, "/progress/use-hint")
	assert.True(t, s.coord.UseHint(ctx))
	assert.Equal(t, calls, s.srv.CountCalls(http.MethodPost, "/progress/use-hint"), "guest play stays local")
}

func TestSignedInLoadUsesServerRecords(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	s.srv.SetGems(400)
	s.srv.SetProgress(api.Progress{LanguageID: "english", CurrentLevel: 3, CompletedLevels: []int{1, 2}, TotalStars: 6})
	s.login(t)

	s.coord.LoadProgress(ctx)
	snap := s.coord.Snapshot()
	assert.Equal(t, 400, snap.Gems)
	assert.Equal(t, 3, snap.Languages["english"].CurrentLevel)

	lv, err := s.coord.StartLevel(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Rome - Colosseum", lv.Name)
}
