// pkg/eos_cli/wrap_test.go

package eos_cli

import (
	"errors"
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name        string
		fn          func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error
		expectError bool
		errorMsg    string
	}{
		{
			name: "successful execution",
			fn: func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				assert.NotNil(t, rc)
				assert.NotNil(t, rc.Ctx)
				assert.NotNil(t, rc.Log)
				assert.Equal(t, []string{"arg1"}, args)
				return nil
			},
		},
		{
			name: "command returns error",
			fn: func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				return errors.New("command failed")
			},
			expectError: true,
			errorMsg:    "command failed",
		},
		{
			name: "panic recovery",
			fn: func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
				panic("test panic")
			},
			expectError: true,
			errorMsg:    "panic: test panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test-cmd"}
			err := Wrap(tt.fn)(cmd, []string{"arg1"})
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWrapPreservesDecline(t *testing.T) {
	cmd := &cobra.Command{Use: "agent"}
	err := Wrap(func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return eos_err.NewDeclinedError("bootstrap")
	})(cmd, nil)

	require.Error(t, err)
	assert.True(t, eos_err.IsDeclined(err))
	assert.Equal(t, 0, eos_err.GetExitCode(err))
}
