package bootstrap

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/sshkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(input string) (*Gate, *[]time.Duration, *bytes.Buffer) {
	out := &bytes.Buffer{}
	var slept []time.Duration
	g := NewGate(interaction.NewPrompter(strings.NewReader(input), io.Discard), &interaction.Printer{Out: out})
	g.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return g, &slept, out
}

func agentPlan() *Plan {
	return &Plan{
		Role:            RoleAgent,
		Version:         packages.Version{Major: "7"},
		Server:          "puppet.example.com",
		Port:            8140,
		Environment:     "production",
		CurrentHostname: "agent01.example.com",
		Hostname:        "agent01.example.com",
		WaitForCert:     30,
		EnableService:   true,
	}
}

func TestConfirmAccepts(t *testing.T) {
	g, slept, out := newGate("y\n")
	require.NoError(t, g.Confirm(eos_io.NewTestContext(t), agentPlan()))
	assert.Empty(t, *slept)
	assert.Contains(t, out.String(), "Puppet server: puppet.example.com")
}

func TestConfirmDeclineExitsCleanly(t *testing.T) {
	g, _, _ := newGate("n\n")
	err := g.Confirm(eos_io.NewTestContext(t), agentPlan())
	require.Error(t, err)
	assert.True(t, eos_err.IsDeclined(err))
	assert.Equal(t, 0, eos_err.GetExitCode(err))
}

func TestConfirmSkippedWaitsGracePeriod(t *testing.T) {
	g, slept, out := newGate("")
	plan := agentPlan()
	plan.SkipConfirmation = true

	require.NoError(t, g.Confirm(eos_io.NewTestContext(t), plan))
	assert.Equal(t, []time.Duration{DefaultGrace}, *slept)
	assert.Contains(t, out.String(), "Ctrl+C")
}

// Declining at the gate must leave the host untouched.
func TestBootstrapDeclinedMutatesNothing(t *testing.T) {
	env := newTestEnv(t)
	g, _, _ := newGate("n\n")
	plan := agentPlan()
	plan.Hostname = "renamed.example.com"
	plan.CSR = puppet.ExtensionAttributes{"pp_role": "web"}

	summary, err := Bootstrap(eos_io.NewTestContext(t), g, env.orch, plan)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, 0, eos_err.GetExitCode(err))

	assert.Empty(t, env.runner.Calls)
	assert.Empty(t, env.manager.installed)
	assert.NoFileExists(t, env.orch.CSRPath)
	data, err := os.ReadFile(env.orch.Hosts.HostnameFile)
	require.NoError(t, err)
	assert.Equal(t, "agent01.example.com\n", string(data))
}

func TestSummaryRedactsSecrets(t *testing.T) {
	plan := &Plan{
		Role:               RoleServer,
		Version:            packages.Version{Major: "8", Exact: "8.4.0"},
		Hostname:           "puppet.example.com",
		RemoveOriginalKeys: true,
		PullDeploy: &PullDeploy{
			Repository:  "git@github.com:example/control.git",
			Key:         &sshkeys.DeployKey{Source: sshkeys.SourceInline, Private: "DEPLOY-SECRET"},
			KeyOwner:    "root",
			Environment: "production",
			HieraFile:   "hiera.bootstrap.yaml",
			ApplyClass:  "role::puppetserver",
			Provider:    "shellgit",
		},
		Secrets: &Secrets{
			Keys:   puppet.EyamlKeys{Private: "EYAML-SECRET", Public: "EYAML-PUBLIC"},
			KeyDir: puppet.DefaultEyamlKeyDir,
		},
		CSR: puppet.ExtensionAttributes{"pp_role": "puppetserver", "pp_environment": "production"},
	}

	s := plan.Summary()
	assert.NotContains(t, s, "DEPLOY-SECRET")
	assert.NotContains(t, s, "EYAML-SECRET")
	assert.Contains(t, s, "r10k repository key: <redacted>")
	assert.Contains(t, s, "eyaml private key: <redacted>")
	assert.Contains(t, s, "Puppetserver version: 8.4.0")
	assert.Less(t, strings.Index(s, "pp_environment"), strings.Index(s, "pp_role"), "attributes are sorted")
	assert.Equal(t, s, plan.Summary(), "summary is deterministic")

	plan.PullDeploy.Key = nil
	assert.Contains(t, plan.Summary(), "none (public repository)")
}

func TestSummaryRedactsCredentialExtensions(t *testing.T) {
	plan := agentPlan()
	plan.CSR = puppet.ExtensionAttributes{
		"pp_role":          "web",
		"pp_preshared_key": "PSK-SECRET",
		"pp_authorization": "AUTH-SECRET",
	}

	s := plan.Summary()
	assert.NotContains(t, s, "PSK-SECRET")
	assert.NotContains(t, s, "AUTH-SECRET")
	assert.Contains(t, s, "pp_preshared_key: <redacted>")
	assert.Contains(t, s, "pp_authorization: <redacted>")
	assert.Contains(t, s, "pp_role: web")
}
