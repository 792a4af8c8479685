package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/monitor/internal/errs"
	"github.com/and161185/monitor/internal/repository"
)

func TestStore_OpenCreateIfMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	_, err := s.Open(ctx, "monitor", false)
	require.ErrorIs(t, err, errs.ErrNotFound)

	h, err := s.Open(ctx, "monitor", true)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = s.Open(ctx, "monitor", false)
	require.NoError(t, err)
	require.NoError(t, h.Close())
}

func TestHandle_GetSetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	h, err := s.Open(ctx, "monitor", true)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Get(ctx, "t1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	val := []byte("v1")
	require.NoError(t, h.Set(ctx, "t1", val))
	val[0] = 'x' // store keeps its own copy

	got, err := h.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)

	require.NoError(t, h.Set(ctx, "t1", []byte("v2")))
	got, err = h.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), got)

	require.NoError(t, h.Delete(ctx, "t1"))
	require.NoError(t, h.Delete(ctx, "t1"))
	_, err = h.Get(ctx, "t1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHandle_NamespacesAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	a, err := s.Open(ctx, "a", true)
	require.NoError(t, err)
	b, err := s.Open(ctx, "b", true)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "k", []byte("1")))
	_, err = b.Get(ctx, "k")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestHandle_UnusableAfterClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h, err := New().Open(ctx, "monitor", true)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	if _, err := h.Get(ctx, "k"); !errors.Is(err, repository.ErrClosed) {
		t.Fatalf("Get after close: want ErrClosed, got %v", err)
	}
	if err := h.Set(ctx, "k", nil); !errors.Is(err, repository.ErrClosed) {
		t.Fatalf("Set after close: want ErrClosed, got %v", err)
	}
	if err := h.Close(); !errors.Is(err, repository.ErrClosed) {
		t.Fatalf("double close: want ErrClosed, got %v", err)
	}
}
