package password_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitelift/siteauth/internal/password"
)

func TestHashIsSalted(t *testing.T) {
	ctx := context.Background()
	hasher := password.NewHasher(2)

	first, err := hasher.Hash(ctx, "secret1")
	require.NoError(t, err)
	second, err := hasher.Hash(ctx, "secret1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.NotContains(t, first, "secret1")
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	hasher := password.NewHasher(2)

	digest, err := hasher.Hash(ctx, "secret1")
	require.NoError(t, err)

	ok, err := hasher.Verify(ctx, "secret1", digest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = hasher.Verify(ctx, "wrong", digest)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyCorruptDigest(t *testing.T) {
	ctx := context.Background()
	hasher := password.NewHasher(2)

	for _, digest := range []string{"", "not-a-digest", "$argon2id$v=19$m=bad$x$y"} {
		ok, err := hasher.Verify(ctx, "secret1", digest)
		require.Error(t, err)
		require.False(t, ok)
	}
}

func TestHashHonorsCancellation(t *testing.T) {
	hasher := password.NewHasher(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := hasher.Hash(ctx, "secret1")
	require.Error(t, err)
}
