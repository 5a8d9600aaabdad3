package resolver

import (
	"context"
	"sync"
	"testing"

	"secrets-service/internal/auth"
	"secrets-service/internal/identity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *StoreResolver {
	t.Helper()

	store, err := identity.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewStoreResolver(store)
}

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)

	for _, provider := range []string{identity.ProviderGoogle, identity.ProviderFacebook} {
		profile := &auth.Profile{Provider: provider, ProviderUserID: "123", DisplayName: "Alice Doe"}

		first, err := r.Resolve(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, "Alice Doe", first.Username)
		assert.False(t, first.HasPassword())

		second, err := r.Resolve(ctx, profile)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, provider)
	}
}

func TestResolveConcurrentFirstCallbacks(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver(t)

	profile := &auth.Profile{Provider: identity.ProviderGoogle, ProviderUserID: "g-7", DisplayName: "Same"}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]int{}
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Resolve(ctx, profile)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[id.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
}

func TestResolveFallsBackToProviderScopedName(t *testing.T) {
	r := newTestResolver(t)

	got, err := r.Resolve(context.Background(), &auth.Profile{Provider: identity.ProviderFacebook, ProviderUserID: "99"})
	require.NoError(t, err)
	assert.Equal(t, "facebook:99", got.Username)
}

func TestResolveRejectsIncompleteProfile(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Resolve(context.Background(), nil)
	assert.Error(t, err)

	_, err = r.Resolve(context.Background(), &auth.Profile{Provider: identity.ProviderGoogle})
	assert.ErrorIs(t, err, auth.ErrProviderFailure)
}
