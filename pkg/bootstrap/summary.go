// pkg/bootstrap/summary.go

package bootstrap

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
)

// Status is the outcome of one stage.
type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusSatisfied   Status = "satisfied"
	StatusSkipped     Status = "skipped"
	StatusRecoverable Status = "recoverable"
	StatusFatal       Status = "fatal"
)

// StepResult records what one stage did.
type StepResult struct {
	Stage   string
	Status  Status
	Message string
	Err     error
}

// Summary is the ordered record of a run. Every stage that was reached has
// exactly one result.
type Summary struct {
	Role    Role
	Results []StepResult
	// FollowUps are operator actions left over from the run.
	FollowUps []string
}

func (s *Summary) add(r StepResult) {
	s.Results = append(s.Results, r)
}

// Result returns the result for stage, if it ran.
func (s *Summary) Result(stage string) (StepResult, bool) {
	for _, r := range s.Results {
		if r.Stage == stage {
			return r, true
		}
	}
	return StepResult{}, false
}

// Failed reports whether a fatal result was recorded.
func (s *Summary) Failed() bool {
	for _, r := range s.Results {
		if r.Status == StatusFatal {
			return true
		}
	}
	return false
}

// Recoverable lists the stages that failed without aborting the run.
func (s *Summary) Recoverable() []StepResult {
	var out []StepResult
	for _, r := range s.Results {
		if r.Status == StatusRecoverable {
			out = append(out, r)
		}
	}
	return out
}

// String renders one line per stage.
func (s *Summary) String() string {
	var b strings.Builder
	for _, r := range s.Results {
		fmt.Fprintf(&b, "    - %-18s %-11s", r.Stage, r.Status)
		if r.Message != "" {
			b.WriteString(" " + r.Message)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Render prints the stage table and the closing message.
func (s *Summary) Render(p *interaction.Printer) {
	p.Heading("Bootstrap summary")
	p.Plain("%s", strings.TrimRight(s.String(), "\n"))

	switch {
	case s.Failed():
		p.Error("Bootstrap aborted. Fix the error above and run the command again, completed stages will be skipped")
	case len(s.Recoverable()) > 0:
		p.Important("Bootstrap completed with problems that need attention:")
		for _, r := range s.Recoverable() {
			p.Important("  %s: %s", r.Stage, r.Message)
		}
	case s.Role == RoleServer:
		p.Success("Puppet server bootstrap complete!")
	default:
		p.Success("Puppet agent bootstrap complete!")
	}
	for _, f := range s.FollowUps {
		p.Plain("%s", f)
	}
}
