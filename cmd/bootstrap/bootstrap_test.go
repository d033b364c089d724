package bootstrap

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/bootstrap"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireTerminal(t *testing.T) {
	tty := func() bool { return true }
	pipe := func() bool { return false }

	assert.NoError(t, requireTerminal(bootstrap.Options{}, tty))
	assert.NoError(t, requireTerminal(bootstrap.Options{Unattended: true}, pipe))

	err := requireTerminal(bootstrap.Options{SkipOptionalPrompts: true}, pipe)
	require.Error(t, err)
	cat, ok := eos_err.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, eos_err.CategoryValidation, cat)
	assert.Contains(t, err.Error(), "--unattended")
}
