package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("submissions/assign-1/stu-1.pdf")
	require.NoError(t, err)
	require.True(t, expiresAt.After(time.Now()))

	relPath, _, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "submissions/assign-1/stu-1.pdf", relPath)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("submissions/a/b.pdf")
	require.NoError(t, err)

	_, _, err = signer.Parse(token + "x")
	require.Error(t, err)

	other := NewSignedURLSigner("different", time.Minute)
	_, _, err = other.Parse(token)
	require.Error(t, err)
}

func TestSignedURLRejectsExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Minute)

	token, _, err := signer.Generate("submissions/a/b.pdf")
	require.NoError(t, err)

	_, _, err = signer.Parse(token)
	require.Error(t, err)
}

func TestSignedURLRequiresPathAndSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	_, _, err := signer.Generate("")
	require.Error(t, err)

	empty := NewSignedURLSigner("", time.Minute)
	_, _, err = empty.Generate("submissions/a/b.pdf")
	require.Error(t, err)
}
