package extractor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandbox_Run(t *testing.T) {
	bin := fakeExtractor(t, `
echo '{"id":"x"}'
echo "warning line" 1>&2
`)
	s := NewSandbox(Config{BinPath: bin}, testLogger())

	result, err := s.Run(context.Background(), []string{"--dump-single-json", "u"})
	require.NoError(t, err)
	assert.Zero(t, result.ExitCode)
	assert.True(t, result.IsJSONOutput)
	assert.Contains(t, result.Stdout, `"id":"x"`)
	assert.Contains(t, result.Stderr, "warning line")
}

func TestSandbox_Run_NonZeroExit(t *testing.T) {
	bin := fakeExtractor(t, `
echo "ERROR: bad url" 1>&2
exit 2
`)
	s := NewSandbox(Config{BinPath: bin}, testLogger())

	result, err := s.Run(context.Background(), []string{"u"})
	require.NoError(t, err, "non-zero exit is data, not an error")
	assert.Equal(t, 2, result.ExitCode)
	assert.False(t, result.IsJSONOutput)
}

func TestSandbox_Stream(t *testing.T) {
	bin := fakeExtractor(t, `
echo "out line"
echo "[download]  42.0% of 3MiB" 1>&2
`)
	s := NewSandbox(Config{BinPath: bin}, testLogger())

	var mu sync.Mutex
	var types []string
	progress := -1
	err := s.Stream(context.Background(), []string{"u"}, func(e SandboxEvent) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
		if e.Type == "progress" {
			progress = e.Progress
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "start", types[0])
	assert.Equal(t, "complete", types[len(types)-1])
	assert.Contains(t, types, "stdout")
	assert.Contains(t, types, "stderr")
	assert.Equal(t, 42, progress)
}

func TestSandbox_Stream_NonZeroExit(t *testing.T) {
	bin := fakeExtractor(t, `exit 5`)
	s := NewSandbox(Config{BinPath: bin}, testLogger())

	var last SandboxEvent
	err := s.Stream(context.Background(), nil, func(e SandboxEvent) { last = e })
	require.NoError(t, err)
	assert.Equal(t, "complete", last.Type)
	assert.Equal(t, 5, last.ExitCode)
}
