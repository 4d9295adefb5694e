package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "volnix1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "volnix1bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	hash1 = "6A1B5E0F1C5D7F0E9E6E8E1A2A9E8B2B6A2F0E1D1C3B4A5968778695A4B3C2D1"
	hash2 = "0F9E8D7C6B5A49382716051F2E3D4C5B6A79888796A5B4C3D2E1F00112233445"
	hash3 = "AA00BB11CC22DD33EE44FF5566778899AABBCCDDEEFF00112233445566778899"
)

// runStoreContract exercises the behaviour every Store backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("append is idempotent and newest first", func(t *testing.T) {
		s := newStore(t)

		added, err := s.Append(ctx, addrA, hash1)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = s.Append(ctx, addrA, hash1)
		require.NoError(t, err)
		assert.False(t, added, "second append of the same hash is a no-op")

		hashes, err := s.Read(ctx, addrA, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{hash1}, hashes)

		_, err = s.Append(ctx, addrA, hash2)
		require.NoError(t, err)

		hashes, err = s.Read(ctx, addrA, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{hash2, hash1}, hashes)

		n, err := s.Count(ctx, addrA)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("read honours limit", func(t *testing.T) {
		s := newStore(t)
		for _, h := range []string{hash1, hash2, hash3} {
			_, err := s.Append(ctx, addrA, h)
			require.NoError(t, err)
		}

		hashes, err := s.Read(ctx, addrA, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{hash3, hash2}, hashes)

		hashes, err = s.Read(ctx, addrA, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{hash3, hash2, hash1}, hashes)
	})

	t.Run("addresses are isolated", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Append(ctx, addrA, hash1)
		require.NoError(t, err)
		_, err = s.Append(ctx, addrB, hash2)
		require.NoError(t, err)
		_, err = s.Append(ctx, addrB, hash1)
		require.NoError(t, err)

		a, err := s.Read(ctx, addrA, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{hash1}, a)

		b, err := s.Read(ctx, addrB, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{hash1, hash2}, b)

		addresses, err := s.Addresses(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{addrA, addrB}, addresses)
	})

	t.Run("unknown address reads empty", func(t *testing.T) {
		s := newStore(t)
		hashes, err := s.Read(ctx, addrA, 5)
		require.NoError(t, err)
		assert.Empty(t, hashes)

		n, err := s.Count(ctx, addrA)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("cursor", func(t *testing.T) {
		s := newStore(t)

		_, ok, err := s.Cursor(ctx, addrA)
		require.NoError(t, err)
		assert.False(t, ok, "never scanned")

		now := time.Date(2026, 3, 1, 12, 0, 0, 123, time.UTC)
		require.NoError(t, s.TouchCursor(ctx, addrA, now))

		last, ok, err := s.Cursor(ctx, addrA)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, last.Equal(now), "got %v want %v", last, now)

		later := now.Add(time.Minute)
		require.NoError(t, s.TouchCursor(ctx, addrA, later))
		last, _, err = s.Cursor(ctx, addrA)
		require.NoError(t, err)
		assert.True(t, last.Equal(later))

		_, ok, err = s.Cursor(ctx, addrB)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid keys rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Append(ctx, "", hash1)
		assert.ErrorIs(t, err, ErrInvalidKey)
		_, err = s.Append(ctx, "volnix1/evil", hash1)
		assert.ErrorIs(t, err, ErrInvalidKey)
		_, err = s.Append(ctx, addrA, "")
		assert.ErrorIs(t, err, ErrInvalidKey)
		_, err = s.Read(ctx, "", 1)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("concurrent appends stay unique", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_, err := s.Append(ctx, addrA, fmt.Sprintf("H%02d", j))
					assert.NoError(t, err)
				}
			}(i)
		}
		wg.Wait()

		hashes, err := s.Read(ctx, addrA, 0)
		require.NoError(t, err)
		assert.Len(t, hashes, 10)

		seen := make(map[string]bool)
		for _, h := range hashes {
			assert.False(t, seen[h], "duplicate %s", h)
			seen[h] = true
		}
	})

	t.Run("closed store rejects calls", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close(), "close is idempotent")

		_, err := s.Append(ctx, addrA, hash1)
		assert.ErrorIs(t, err, ErrClosed)
		_, err = s.Read(ctx, addrA, 1)
		assert.ErrorIs(t, err, ErrClosed)
		_, _, err = s.Cursor(ctx, addrA)
		assert.ErrorIs(t, err, ErrClosed)
	})
}
