package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_AvailableBytes(t *testing.T) {
	p := NewProbe()

	free, err := p.AvailableBytes(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free, "temp dir filesystem should have free space")
}

func TestProbe_AvailableBytes_BadPath(t *testing.T) {
	p := NewProbe()

	_, err := p.AvailableBytes("/definitely/not/a/real/path")
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestProbe_HasAtLeast(t *testing.T) {
	p := NewProbe()
	dir := t.TempDir()

	ok, err := p.HasAtLeast(dir, 0)
	require.NoError(t, err)
	assert.True(t, ok, "every filesystem has at least 0 GB free")

	// An absurd requirement should fail on any test machine.
	ok, err = p.HasAtLeast(dir, 1<<20)
	require.NoError(t, err)
	assert.False(t, ok)
}
