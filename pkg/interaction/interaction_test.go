package interaction

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  puppet.example.com  \n"), &out)

	got, err := p.ReadLine(context.Background(), "Server")
	require.NoError(t, err)
	assert.Equal(t, "puppet.example.com", got)
	assert.Equal(t, "Server: ", out.String())
}

func TestReadLineEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), &bytes.Buffer{})
	_, err := p.ReadLine(context.Background(), "Server")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInput))

	p = NewPrompter(strings.NewReader("last-line-no-newline"), &bytes.Buffer{})
	got, err := p.ReadLine(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "last-line-no-newline", got)
}

func TestReadLineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPrompter(strings.NewReader("value\n"), &bytes.Buffer{})
	_, err := p.ReadLine(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPromptValidatedLoops(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\nabc\n8140\n"), &out)

	got, err := p.PromptValidated(context.Background(), "Port", func(s string) (string, error) {
		if s != "8140" {
			return "", errors.New("must be 8140")
		}
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "8140", got)
	assert.Equal(t, 2, strings.Count(out.String(), "must be 8140"))
}

func TestPromptYesNo(t *testing.T) {
	p := NewPrompter(strings.NewReader("maybe\nYES\nn\n"), &bytes.Buffer{})

	yes, err := p.PromptYesNo(context.Background(), "Continue?")
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := p.PromptYesNo(context.Background(), "Continue?")
	require.NoError(t, err)
	assert.False(t, no)

	_, err = p.PromptYesNo(context.Background(), "Continue?")
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestNormalizeYesNoInput(t *testing.T) {
	tests := []struct {
		in     string
		answer bool
		ok     bool
	}{
		{"y", true, true},
		{" Yes ", true, true},
		{"N", false, true},
		{"no", false, true},
		{"", false, false},
		{"yep", false, false},
	}
	for _, tt := range tests {
		answer, ok := NormalizeYesNoInput(tt.in)
		assert.Equal(t, tt.answer, answer, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Out: &out}
	p.Important("delete %s", "/tmp/key")
	p.Success("done")
	p.Plain("plain %d", 1)
	assert.Contains(t, out.String(), "delete /tmp/key")
	assert.Contains(t, out.String(), "done")
	assert.Contains(t, out.String(), "plain 1")
}
