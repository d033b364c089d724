package execute

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemRun(t *testing.T) {
	var stream bytes.Buffer
	out, err := System{}.Run(context.Background(), Options{
		Command: "echo",
		Args:    []string{"hello", "world"},
		Stream:  &stream,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)
	assert.Equal(t, "hello world\n", stream.String())
}

func TestSystemRunExitCode(t *testing.T) {
	_, err := System{}.Run(context.Background(), Options{Command: "false"})
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "false", ee.Command)
}

func TestSystemRunMissingBinary(t *testing.T) {
	_, err := System{}.Run(context.Background(), Options{Command: "/nonexistent/puppetstrap-binary"})
	require.Error(t, err)
	assert.Equal(t, -1, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: 2}))
	assert.Equal(t, 6, ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: 6})))
	assert.Equal(t, 4, ExitCode(cerr.Wrap(&ExitError{Code: 4}, "stage")))
	assert.Equal(t, -1, ExitCode(cerr.New("no binary")))
}

func TestSummarize(t *testing.T) {
	out := "Reading package lists...\nE: Unable to locate package puppet-agent\nDone"
	assert.Equal(t, "E: Unable to locate package puppet-agent", Summarize(out, 2))
	assert.Equal(t, "last line", Summarize("first\nlast line\n\n", 2))
	assert.Equal(t, "", Summarize("", 2))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder().
		On("puppet agent", Response{ExitCode: 2, Output: "changes applied"}).
		On("puppet agent --test --noop", Response{ExitCode: 0})

	out, err := r.Run(context.Background(), Options{Command: "puppet", Args: []string{"agent", "--test"}})
	assert.Equal(t, "changes applied", out)
	assert.Equal(t, 2, ExitCode(err))

	_, err = r.Run(context.Background(), Options{Command: "puppet", Args: []string{"agent", "--test", "--noop"}})
	assert.NoError(t, err)

	_, err = r.Run(context.Background(), Options{Command: "systemctl", Args: []string{"enable", "puppet"}})
	assert.NoError(t, err)

	assert.True(t, r.Ran("systemctl enable"))
	assert.Equal(t, 0, r.Index("puppet agent --test"))
	assert.Equal(t, -1, r.Index("r10k"))
	assert.Len(t, r.Calls, 3)
}
