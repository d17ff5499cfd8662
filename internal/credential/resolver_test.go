package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, prompt PromptFunc) (*OracleResolver, *Store) {
	t.Helper()
	store := NewStore(keyring.NewArrayKeyring(nil))
	return NewOracleResolver(WithStore(store), WithPrompt(prompt)), store
}

func failingPrompt(t *testing.T) PromptFunc {
	return func(ctx context.Context, title string) (string, error) {
		t.Fatalf("unexpected prompt %q", title)
		return "", nil
	}
}

func TestResolve_PlainPassword(t *testing.T) {
	r, _ := newTestResolver(t, failingPrompt(t))

	secret, err := r.Resolve(context.Background(), Request{Key: "k", Value: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)
}

func TestResolve_KeyringHit(t *testing.T) {
	r, store := newTestResolver(t, failingPrompt(t))
	require.NoError(t, store.Set("fossil://alice@host/", "from-keyring"))

	for _, value := range []string{"", OracleUseKeyring} {
		secret, err := r.Resolve(context.Background(), Request{
			Key:   "fossil://alice@host/",
			Value: value,
		})
		require.NoError(t, err)
		assert.Equal(t, "from-keyring", secret)
	}
}

func TestResolve_KeyringMissPromptsAndStores(t *testing.T) {
	prompts := 0
	r, store := newTestResolver(t, func(ctx context.Context, title string) (string, error) {
		prompts++
		assert.Contains(t, title, "alice")
		return "typed", nil
	})

	req := Request{
		Key:         "fossil://alice@host/",
		Username:    "alice",
		Value:       OracleUseKeyring,
		Interactive: true,
	}

	secret, err := r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "typed", secret)

	stored, err := store.Get(req.Key)
	require.NoError(t, err)
	assert.Equal(t, "typed", stored)

	// Second resolution is served from the keyring.
	secret, err = r.Resolve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "typed", secret)
	assert.Equal(t, 1, prompts)
}

func TestResolve_NonInteractiveMiss(t *testing.T) {
	r, _ := newTestResolver(t, failingPrompt(t))

	_, err := r.Resolve(context.Background(), Request{Key: "k", Value: OracleAskPass})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInteractive))

	_, err = r.Resolve(context.Background(), Request{Key: "k", Value: OracleUseKeyring})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotInteractive))
}

func TestResolve_Eval(t *testing.T) {
	r, _ := newTestResolver(t, failingPrompt(t))

	secret, err := r.Resolve(context.Background(), Request{
		Key:   "k",
		Value: OracleEvalPrefix + "printf 'first\\nsecond\\n'",
	})
	require.NoError(t, err)
	assert.Equal(t, "first", secret)

	_, err = r.Resolve(context.Background(), Request{Key: "k", Value: OracleEvalPrefix + "exit 3"})
	assert.Error(t, err)
}

func TestResolve_UnknownOracle(t *testing.T) {
	r, _ := newTestResolver(t, failingPrompt(t))

	_, err := r.Resolve(context.Background(), Request{Key: "k", Value: "@oracle:carrier_pigeon"})
	assert.Error(t, err)
}

func TestNeedsResolution(t *testing.T) {
	assert.True(t, NeedsResolution(""))
	assert.True(t, NeedsResolution(OracleAskPass))
	assert.False(t, NeedsResolution("plain"))
}

// countingPrompt records the largest number of prompts open at once.
type countingPrompt struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
}

func (p *countingPrompt) prompt(ctx context.Context, title string) (string, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	p.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return "typed", nil
}

func TestResolve_PromptsOneAtATime(t *testing.T) {
	p := &countingPrompt{}
	r, _ := newTestResolver(t, p.prompt)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), Request{
				Key:         fmt.Sprintf("fossil://alice@host%d/", i),
				Value:       OracleAskPass,
				Interactive: true,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(3), p.calls.Load())
	assert.Equal(t, int32(1), p.maxSeen.Load())
}

func TestResolve_SharedKeyPromptsOnce(t *testing.T) {
	p := &countingPrompt{}
	r, store := newTestResolver(t, p.prompt)
	req := Request{Key: "fossil://alice@host/", Value: OracleUseKeyring, Interactive: true}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secret, err := r.Resolve(context.Background(), req)
			assert.NoError(t, err)
			assert.Equal(t, "typed", secret)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	stored, err := store.Get(req.Key)
	require.NoError(t, err)
	assert.Equal(t, "typed", stored)
}

func TestForget(t *testing.T) {
	r, store := newTestResolver(t, failingPrompt(t))
	ctx := context.Background()
	require.NoError(t, store.Set("fossil://alice@host/", "stale"))

	// Non-keyring forms are not remembered, so nothing is removed.
	require.NoError(t, r.Forget(ctx, Request{Key: "fossil://alice@host/", Value: OracleAskPass}))
	_, err := store.Get("fossil://alice@host/")
	require.NoError(t, err)

	require.NoError(t, r.Forget(ctx, Request{Key: "fossil://alice@host/", Value: OracleUseKeyring}))
	_, err = store.Get("fossil://alice@host/")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)

	// Forgetting twice is harmless.
	assert.NoError(t, r.Forget(ctx, Request{Key: "fossil://alice@host/", Value: ""}))
}
