// pkg/bootstrap/orchestrator.go
//
// The orchestrator executes a confirmed plan as an ordered list of phases.
// Every phase begins with a state check so a second run converges instead of
// repeating work.

package bootstrap

import (
	"context"
	"os"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/hosts"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/r10k"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/sshkeys"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/systemd"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Stage names, in execution order.
const (
	StageHostname         = "hostname"
	StagePackage          = "package"
	StageCredential       = "credential"
	StageConfiguration    = "configuration"
	StageSecrets          = "secrets"
	StagePullDeployment   = "pull-deployment"
	StageBootstrapApply   = "bootstrap-apply"
	StageFirstConvergence = "first-convergence"
	StageService          = "service"
)

// PuppetService is the agent unit enabled at the end of a run.
const PuppetService = "puppet"

// Phase is one step of a bootstrap run.
type Phase struct {
	Name        string
	Description string
	// Required phases abort the run on error. Others are recorded as
	// recoverable and the run continues.
	Required   bool
	Run        func(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error)
	SkipIf     func(plan *Plan) bool
	SkipReason string
}

// EnterWaiter pauses until the operator is ready.
type EnterWaiter interface {
	WaitForEnter(ctx context.Context, message string) error
}

// Orchestrator holds the collaborators the phases drive.
type Orchestrator struct {
	Runner    execute.Runner
	Printer   *interaction.Printer
	Prompter  EnterWaiter
	Hosts     *hosts.Manager
	Installer *packages.Installer
	Puppet    *puppet.Client
	// Gems installs into the system Ruby, ServerGems into puppetserver.
	Gems       *puppet.GemInstaller
	ServerGems *puppet.GemInstaller
	Services   *systemd.Manager
	Scanner    sshkeys.KeyScanner

	LookupOwner     func(name string) (*sshkeys.Owner, error)
	CSRPath         string
	R10kConfigPath  string
	R10kCacheDir    string
	EnvironmentsDir string

	run runState
}

// runState is what earlier phases hand to later ones.
type runState struct {
	deployKeyPath string
	eyaml         puppet.EyamlPaths
}

// NewOrchestrator wires the production collaborators for facts.
func NewOrchestrator(runner execute.Runner, facts *platform.Facts, plan *Plan, printer *interaction.Printer, prompter EnterWaiter) (*Orchestrator, error) {
	manager, err := packages.NewManager(facts, runner)
	if err != nil {
		return nil, err
	}
	client := puppet.NewClient(runner, plan.PuppetBin)
	client.Out = printer.Out
	return &Orchestrator{
		Runner:   runner,
		Printer:  printer,
		Prompter: prompter,
		Hosts:    hosts.NewManager(runner),
		Installer: &packages.Installer{
			Manager:    manager,
			Downloader: packages.NewHTTPDownloader(),
			Facts:      facts,
			StagingDir: os.TempDir(),
		},
		Puppet:          client,
		Gems:            &puppet.GemInstaller{Runner: runner},
		ServerGems:      &puppet.GemInstaller{Runner: runner, Puppetserver: plan.PuppetserverBin},
		Services:        &systemd.Manager{Runner: runner},
		Scanner:         sshkeys.NewNetScanner(),
		LookupOwner:     sshkeys.LookupOwner,
		CSRPath:         puppet.DefaultCSRAttributesPath,
		R10kConfigPath:  r10k.DefaultConfigPath,
		R10kCacheDir:    r10k.DefaultCacheDir,
		EnvironmentsDir: r10k.DefaultEnvironmentsDir,
	}, nil
}

// Phases lists the phases for plan's role in execution order.
func (o *Orchestrator) Phases() []Phase {
	return []Phase{
		{
			Name:        StageHostname,
			Description: "Setting the hostname",
			Required:    true,
			Run:         o.runHostname,
		},
		{
			Name:        StagePackage,
			Description: "Installing Puppet packages",
			Required:    true,
			Run:         o.runPackages,
		},
		{
			Name:        StageCredential,
			Description: "Writing CSR extension attributes",
			Required:    true,
			Run:         o.runCredential,
			SkipIf:      func(p *Plan) bool { return len(p.CSR) == 0 },
			SkipReason:  "no CSR extension attributes",
		},
		{
			Name:        StageConfiguration,
			Description: "Configuring puppet.conf",
			Required:    true,
			Run:         o.runConfiguration,
			SkipIf:      func(p *Plan) bool { return len(configSettings(p)) == 0 },
			SkipReason:  "nothing to configure",
		},
		{
			Name:        StageSecrets,
			Description: "Installing hiera-eyaml and its keys",
			Required:    true,
			Run:         o.runSecrets,
			SkipIf:      func(p *Plan) bool { return p.Role != RoleServer || p.Secrets == nil },
			SkipReason:  "eyaml not requested",
		},
		{
			Name:        StagePullDeployment,
			Description: "Deploying the control repository with r10k",
			Required:    true,
			Run:         o.runPullDeployment,
			SkipIf:      func(p *Plan) bool { return p.Role != RoleServer || p.PullDeploy == nil },
			SkipReason:  "r10k not requested",
		},
		{
			Name:        StageBootstrapApply,
			Description: "Applying the Puppet server class",
			Required:    false,
			Run:         o.runBootstrapApply,
			SkipIf: func(p *Plan) bool {
				return p.Role != RoleServer || p.PullDeploy == nil || p.PullDeploy.ApplyClass == ""
			},
			SkipReason: "no class to apply",
		},
		{
			Name:        StageFirstConvergence,
			Description: "Running Puppet for the first time",
			Required:    false,
			Run:         o.runFirstConvergence,
			SkipIf:      func(p *Plan) bool { return p.Role != RoleAgent || p.SkipInitialRun },
			SkipReason:  "initial run skipped",
		},
		{
			Name:        StageService,
			Description: "Enabling the Puppet service",
			Required:    true,
			Run:         o.runService,
			SkipIf:      func(p *Plan) bool { return !p.EnableService },
			SkipReason:  "service enablement declined",
		},
	}
}

// Run executes every phase in order. A required phase failure stops the run
// and is returned alongside the partial summary.
func (o *Orchestrator) Run(rc *eos_io.RuntimeContext, plan *Plan) (*Summary, error) {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Info("Starting bootstrap", zap.String("role", string(plan.Role)), zap.String("hostname", plan.Hostname))

	summary := &Summary{Role: plan.Role}
	for _, phase := range o.Phases() {
		if phase.SkipIf != nil && phase.SkipIf(plan) {
			logger.Info("Skipping phase", zap.String("phase", phase.Name), zap.String("reason", phase.SkipReason))
			summary.add(StepResult{Stage: phase.Name, Status: StatusSkipped, Message: phase.SkipReason})
			continue
		}

		o.Printer.Heading("%s", phase.Description)
		status, msg, err := o.execute(rc, phase, plan)
		if err == nil {
			logger.Info("Phase completed", zap.String("phase", phase.Name), zap.String("status", string(status)))
			summary.add(StepResult{Stage: phase.Name, Status: status, Message: msg})
			continue
		}

		if phase.Required {
			if _, classified := eos_err.CategoryOf(err); !classified {
				err = eos_err.NewStageError(phase.Name, err)
			}
			logger.Error("Required phase failed", zap.String("phase", phase.Name), zap.Error(err))
			summary.add(StepResult{Stage: phase.Name, Status: StatusFatal, Message: err.Error(), Err: err})
			return summary, err
		}
		logger.Warn("Phase failed, continuing", zap.String("phase", phase.Name), zap.Error(err))
		summary.add(StepResult{Stage: phase.Name, Status: StatusRecoverable, Message: err.Error(), Err: err})
		summary.FollowUps = append(summary.FollowUps, followUp(phase.Name))
	}

	summary.FollowUps = append(summary.FollowUps, o.removeOriginals(rc, plan)...)
	return summary, nil
}

func (o *Orchestrator) execute(rc *eos_io.RuntimeContext, phase Phase, plan *Plan) (Status, string, error) {
	ctx, span := telemetry.Start(rc.Ctx, "bootstrap."+phase.Name,
		attribute.String("stage", phase.Name),
		attribute.Bool("required", phase.Required))
	defer span.End()

	stage := *rc
	stage.Ctx = ctx
	status, msg, err := phase.Run(&stage, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("status", string(status)))
	return status, msg, err
}

func followUp(stage string) string {
	switch stage {
	case StageFirstConvergence:
		return "The first Puppet run did not succeed. The node is enrolled; check the certificate is signed and run 'puppet agent --test' to investigate."
	case StageBootstrapApply:
		return "The Puppet server class could not be applied. Fix the errors above and re-run 'puppet apply' or this bootstrap."
	}
	return "The " + stage + " stage failed. Re-run the bootstrap once the problem is fixed."
}

// Bootstrap asks the gate for consent and then runs plan. Nothing on the
// host is touched when the gate declines.
func Bootstrap(rc *eos_io.RuntimeContext, gate *Gate, o *Orchestrator, plan *Plan) (*Summary, error) {
	if err := gate.Confirm(rc, plan); err != nil {
		return nil, err
	}
	return o.Run(rc, plan)
}
