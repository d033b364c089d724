// pkg/puppet/run.go

package puppet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ConvergedCode reports whether a --detailed-exitcodes status means the run
// succeeded: 0 is no changes, 2 is changes applied.
func ConvergedCode(code int) bool {
	return code == 0 || code == 2
}

// AgentTest performs a one-off agent run. waitForCert > 0 makes the agent
// poll for a signed certificate at that interval in seconds.
func (c *Client) AgentTest(rc *eos_io.RuntimeContext, waitForCert int) error {
	logger := otelzap.Ctx(rc.Ctx)

	args := []string{"agent", "--test", "--detailed-exitcodes"}
	if waitForCert > 0 {
		args = append(args, "--waitforcert", strconv.Itoa(waitForCert))
	}
	logger.Info("Starting puppet agent run", zap.Strings("args", args))

	return c.converge(rc, args, "puppet agent run")
}

// ApplyRequest describes a masterless apply of a single class against a
// deployed environment.
type ApplyRequest struct {
	HieraConfig string
	ModulePath  []string
	Class       string
}

// Args renders the puppet apply arguments.
func (r ApplyRequest) Args() []string {
	return []string{
		"apply",
		"--hiera_config=" + r.HieraConfig,
		"--modulepath=" + strings.Join(r.ModulePath, ":"),
		"-e", "include " + r.Class,
		"--detailed-exitcodes",
	}
}

// Apply runs puppet apply for req.
func (c *Client) Apply(rc *eos_io.RuntimeContext, req ApplyRequest) error {
	if req.Class == "" {
		return eos_err.NewValidationError("no class to apply")
	}
	otelzap.Ctx(rc.Ctx).Info("Applying class", zap.String("class", req.Class))
	return c.converge(rc, req.Args(), fmt.Sprintf("apply of %s", req.Class))
}

func (c *Client) converge(rc *eos_io.RuntimeContext, args []string, what string) error {
	_, err := c.Runner.Run(rc.Ctx, execute.Options{Command: c.Bin, Args: args, Stream: c.Out})
	code := execute.ExitCode(err)
	if ConvergedCode(code) {
		otelzap.Ctx(rc.Ctx).Info("Puppet run converged", zap.String("run", what), zap.Int("exit_code", code))
		return nil
	}
	if code < 0 {
		return cerr.Wrapf(err, "%s could not be started", what)
	}
	return eos_err.NewConvergenceError(fmt.Sprintf("%s failed", what), code,
		"Check the puppet output above for the failing resources")
}
