// pkg/bootstrap/resolve.go
//
// The resolver turns command-line options into a Plan. Explicit options
// always win. Missing required values are prompted for when attended and
// are fatal when unattended. Optional sections are offered only when
// prompts are not skipped.

package bootstrap

import (
	"context"
	"fmt"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/r10k"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/sshkeys"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	DefaultEnvironment = "production"
	DefaultHieraFile   = "hiera.bootstrap.yaml"
	DefaultPort        = 8140
	DefaultWaitForCert = 30
	DefaultKeyOwner    = "root"
)

// Options are the raw command-line inputs for both roles.
type Options struct {
	Role Role

	Version         string
	NewHostname     string
	DomainName      string
	CertificateName string
	CSRExtensions   string

	Unattended          bool
	SkipOptionalPrompts bool
	SkipConfirmation    bool
	EnableService       bool
	PuppetBin           string

	// agent
	Server              string
	Port                int
	Environment         string
	ExplicitEnvironment bool
	CSRRetryInterval    int
	SkipInitialRun      bool
	SkipServerCheck     bool

	// server
	AgentVersion                 string
	BootstrapEnvironment         string
	ExplicitBootstrapEnvironment bool
	BootstrapHiera               string
	ExplicitBootstrapHiera       bool
	PuppetserverClass            string
	R10kRepository               string
	R10kKeyPath                  string
	R10kKeyData                  string
	R10kGenerateKey              bool
	R10kKeyOwner                 string
	ExplicitKeyOwner             bool
	R10kVersion                  string
	R10kProvider                 string
	R10kPath                     string
	EyamlPrivateKey              string
	EyamlPublicKey               string
	HieraEyamlVersion            string
	EyamlKeyPath                 string
	RemoveOriginalKeys           bool
	PuppetserverPath             string
}

// Prompter is the operator input the resolver needs.
type Prompter interface {
	PromptValidated(ctx context.Context, label string, validate func(string) (string, error)) (string, error)
	PromptYesNo(ctx context.Context, question string) (bool, error)
}

// Pinger checks the Puppet server answers before anything is changed.
type Pinger interface {
	Ping(rc *eos_io.RuntimeContext, host string) error
}

// CommandPinger sends four ICMP echo requests with ping(8).
type CommandPinger struct {
	Runner execute.Runner
}

func (p *CommandPinger) Ping(rc *eos_io.RuntimeContext, host string) error {
	_, err := p.Runner.Run(rc.Ctx, execute.Options{Command: "ping", Args: []string{"-c", "4", host}})
	return err
}

// Resolver builds plans. LookupOwner defaults to the system account
// database.
type Resolver struct {
	Prompter        Prompter
	Printer         *interaction.Printer
	Pinger          Pinger
	CurrentHostname string
	LookupOwner     func(name string) (*sshkeys.Owner, error)
}

type session struct {
	*Resolver
	rc   *eos_io.RuntimeContext
	opts Options
	plan *Plan
}

// Resolve validates opts, filling gaps from the operator when allowed.
// No plan is returned unless every rule holds.
func (r *Resolver) Resolve(rc *eos_io.RuntimeContext, opts Options) (*Plan, error) {
	logger := otelzap.Ctx(rc.Ctx)

	plan := &Plan{
		Role:               opts.Role,
		CurrentHostname:    r.CurrentHostname,
		Unattended:         opts.Unattended,
		SkipPrompts:        opts.SkipOptionalPrompts || opts.Unattended,
		SkipConfirmation:   opts.SkipConfirmation || opts.Unattended,
		SkipInitialRun:     opts.SkipInitialRun,
		EnableService:      opts.EnableService,
		RemoveOriginalKeys: opts.RemoveOriginalKeys,
		PuppetBin:          opts.PuppetBin,
		PuppetserverBin:    firstNonEmpty(opts.PuppetserverPath, puppet.DefaultPuppetserverBin),
	}
	s := &session{Resolver: r, rc: rc, opts: opts, plan: plan}

	var err error
	switch opts.Role {
	case RoleAgent:
		err = s.resolveAgent()
	case RoleServer:
		err = s.resolveServer()
	default:
		_, err = ParseRole(string(opts.Role))
	}
	if err != nil {
		return nil, err
	}

	if err := plan.CSR.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Bootstrap plan resolved",
		zap.String("role", string(plan.Role)),
		zap.String("version", plan.Version.String()),
		zap.String("hostname", plan.Hostname),
		zap.Bool("pull_deploy", plan.PullDeploy != nil),
		zap.Bool("secrets", plan.Secrets != nil))
	return plan, nil
}

func (s *session) resolveAgent() error {
	o, p := s.opts, s.plan

	server, err := s.required("Puppet server FQDN", "puppet-server", FieldFQDN, o.Server)
	if err != nil {
		return err
	}
	p.Server = server
	p.Domain = firstNonEmpty(o.DomainName, DomainFromFQDN(server))

	if err := s.resolveVersion(); err != nil {
		return err
	}

	port, err := Validate(FieldPort, strconv.Itoa(o.Port))
	if err != nil {
		return err
	}
	p.Port, _ = strconv.Atoi(port)

	if !o.SkipServerCheck && !p.Unattended && s.Pinger != nil {
		if err := s.Pinger.Ping(s.rc, server); err != nil {
			return eos_err.NewEnvironmentError(
				fmt.Sprintf("could not ping the Puppet server at %s", server), err,
				"Check the name is correct and resolves from this host",
				"Pass --skip-puppet-server-check if ICMP is blocked")
		}
	}

	p.Environment = firstNonEmpty(o.Environment, DefaultEnvironment)
	if !o.ExplicitEnvironment && !p.SkipPrompts {
		s.Printer.Important("This machine will be bootstrapped from the '%s' environment", p.Environment)
		change, err := s.ask("Would you like to set a different environment?")
		if err != nil {
			return err
		}
		if change {
			if p.Environment, err = s.prompt("Environment to use", FieldNonEmpty); err != nil {
				return err
			}
		}
	}

	if err := s.resolveCSR(); err != nil {
		return err
	}
	if err := s.resolveHostname(); err != nil {
		return err
	}
	if err := s.resolveCertName(); err != nil {
		return err
	}

	p.WaitForCert = o.CSRRetryInterval
	return nil
}

func (s *session) resolveServer() error {
	o, p := s.opts, s.plan

	if (o.EyamlPrivateKey == "") != (o.EyamlPublicKey == "") {
		return eos_err.NewValidationError(
			"when supplying eyaml keys you must supply both the private and public key",
			"Pass both --eyaml-privatekey and --eyaml-publickey")
	}

	p.Domain = o.DomainName
	if err := s.resolveHostname(); err != nil {
		return err
	}
	if err := s.resolveVersion(); err != nil {
		return err
	}
	if o.AgentVersion != "" {
		raw, err := Validate(FieldVersion, o.AgentVersion)
		if err != nil {
			return err
		}
		agent := packages.SplitVersion(raw)
		if err := requireSameMajor(agent, p.Version); err != nil {
			return err
		}
		p.AgentVersion = &agent
	}

	if err := s.resolvePullDeploy(); err != nil {
		return err
	}
	if err := s.resolveSecrets(); err != nil {
		return err
	}
	if err := s.resolveCSR(); err != nil {
		return err
	}
	return s.resolveCertName()
}

func requireSameMajor(agent, server packages.Version) error {
	same, err := packages.SameMajor(agent.Major, server.Major)
	if err != nil {
		return eos_err.NewValidationError(err.Error())
	}
	if !same {
		return eos_err.NewValidationError(
			fmt.Sprintf("puppet-agent %s and puppetserver %s must share a major version", agent, server),
			"Use the same major version for --agent-version and --version")
	}
	return nil
}

func (s *session) resolveVersion() error {
	label := "Version of Puppet agent to install, major (e.g. 7) or exact (e.g. 7.28.0)"
	if s.plan.Role == RoleServer {
		label = "Version of Puppetserver to install, major (e.g. 8) or exact (e.g. 8.4.0)"
	}
	raw, err := s.required(label, "version", FieldVersion, s.opts.Version)
	if err != nil {
		return err
	}
	s.plan.Version = packages.SplitVersion(raw)
	return nil
}

// resolveHostname picks the final hostname and makes sure it is fully
// qualified, borrowing the plan's domain for bare names.
func (s *session) resolveHostname() error {
	p := s.plan
	name := s.opts.NewHostname
	if name == "" {
		name = p.CurrentHostname
		if !p.SkipPrompts {
			s.Printer.Important("Current hostname: %s", p.CurrentHostname)
			change, err := s.ask("Would you like to change the hostname?")
			if err != nil {
				return err
			}
			if change {
				if name, err = s.prompt("New hostname", FieldNonEmpty); err != nil {
					return err
				}
			}
		}
	}

	qualified := QualifyHostname(name, p.Domain)
	if qualified != name {
		s.Printer.Important("The hostname %s is not fully qualified, using %s", name, qualified)
	}

	fqdn, err := s.required("Fully qualified hostname for this host", "new-hostname", FieldFQDN, qualified)
	if err != nil {
		return err
	}
	p.Hostname = fqdn
	return nil
}

func (s *session) resolveCertName() error {
	p := s.plan
	if s.opts.CertificateName != "" {
		p.CertName = s.opts.CertificateName
		return nil
	}
	if p.SkipPrompts {
		return nil
	}
	custom, err := s.ask("Would you like to set a custom certificate name?")
	if err != nil || !custom {
		return err
	}
	p.CertName, err = s.prompt("Certificate name", FieldNonEmpty)
	return err
}

func (s *session) resolveCSR() error {
	p := s.plan
	if s.opts.CSRExtensions != "" {
		attrs, err := puppet.ParseExtensionAttributes(s.opts.CSRExtensions)
		if err != nil {
			return err
		}
		p.CSR = attrs
		return nil
	}
	if p.SkipPrompts {
		return nil
	}
	want, err := s.ask("Would you like to set any CSR extension attributes?")
	if err != nil || !want {
		return err
	}

	attrs := puppet.ExtensionAttributes{}
	for {
		key, err := s.prompt("Extension short name (e.g. pp_environment)", FieldExtension)
		if err != nil {
			return err
		}
		value, err := s.prompt(fmt.Sprintf("Value for '%s'", key), FieldNonEmpty)
		if err != nil {
			return err
		}
		attrs[key] = value
		more, err := s.ask("Would you like to add another attribute?")
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	p.CSR = attrs
	return nil
}

func (s *session) resolvePullDeploy() error {
	o, p := s.opts, s.plan

	repo := o.R10kRepository
	if repo == "" && !p.SkipPrompts {
		use, err := s.ask("Would you like to use r10k?")
		if err != nil {
			return err
		}
		if use {
			if repo, err = s.prompt("Repository URI for the r10k control repository", FieldNonEmpty); err != nil {
				return err
			}
		}
	}
	if repo == "" {
		return nil
	}

	pd := &PullDeploy{
		Repository:  repo,
		RepoName:    r10k.RepoName(repo),
		Origin:      r10k.OriginHost(repo),
		KeyName:     sshkeys.DefaultKeyName,
		KeyOwner:    firstNonEmpty(o.R10kKeyOwner, DefaultKeyOwner),
		Environment: firstNonEmpty(o.BootstrapEnvironment, DefaultEnvironment),
		HieraFile:   firstNonEmpty(o.BootstrapHiera, DefaultHieraFile),
		ApplyClass:  o.PuppetserverClass,
		R10kVersion: o.R10kVersion,
		Provider:    firstNonEmpty(o.R10kProvider, r10k.ProviderShellGit),
		R10kBin:     o.R10kPath,
	}
	if pd.Provider != r10k.ProviderShellGit && pd.Provider != r10k.ProviderRugged {
		return eos_err.NewValidationErrorf("unknown r10k git provider %q (expected shellgit or rugged)", pd.Provider)
	}

	key, err := s.resolveDeployKey(repo)
	if err != nil {
		return err
	}
	pd.Key = key

	if key != nil && !p.SkipPrompts && !o.ExplicitKeyOwner && pd.KeyOwner == DefaultKeyOwner {
		change, err := s.ask("The deploy key owner is 'root'. Would you like to change this?")
		if err != nil {
			return err
		}
		if change {
			if pd.KeyOwner, err = s.Prompter.PromptValidated(s.rc.Ctx, "User who should own the deploy key", s.existingAccount); err != nil {
				return err
			}
		}
	}
	// the owner is only consulted when ssh is involved
	if key != nil || r10k.IsSSH(repo) {
		if pd.KeyOwner, err = s.existingAccount(pd.KeyOwner); err != nil {
			return err
		}
	}

	if !o.ExplicitBootstrapEnvironment && !p.SkipPrompts {
		change, err := s.ask(fmt.Sprintf("The bootstrap environment is '%s'. Would you like to change this?", pd.Environment))
		if err != nil {
			return err
		}
		if change {
			if pd.Environment, err = s.prompt("Environment to bootstrap from", FieldNonEmpty); err != nil {
				return err
			}
		}
	}
	if !o.ExplicitBootstrapHiera && !p.SkipPrompts {
		change, err := s.ask(fmt.Sprintf("The bootstrap Hiera file is '%s'. Would you like to change this?", pd.HieraFile))
		if err != nil {
			return err
		}
		if change {
			if pd.HieraFile, err = s.prompt("Hiera file to bootstrap with", FieldNonEmpty); err != nil {
				return err
			}
		}
	}

	// A bootstrap hiera file is only useful with a class to apply.
	if pd.HieraFile != "" && pd.ApplyClass == "" {
		if p.Unattended {
			return eos_err.NewValidationError(
				"a Puppet class to apply is required when a bootstrap Hiera file is set",
				"Pass --puppetserver-class, e.g. --puppetserver-class role::puppetserver")
		}
		if pd.ApplyClass, err = s.prompt("Puppet class to apply to the Puppet server (e.g. puppetserver)", FieldNonEmpty); err != nil {
			return err
		}
	}

	p.PullDeploy = pd
	return nil
}

func (s *session) resolveDeployKey(repo string) (*sshkeys.DeployKey, error) {
	o, p := s.opts, s.plan

	sources := 0
	for _, set := range []bool{o.R10kKeyPath != "", o.R10kKeyData != "", o.R10kGenerateKey} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, eos_err.NewValidationError(
			"only one of --r10k-repository-key, --r10k-repository-key-data and --r10k-generate-key may be given")
	}

	switch {
	case o.R10kKeyPath != "":
		return readDeployKey(o.R10kKeyPath)
	case o.R10kKeyData != "":
		return &sshkeys.DeployKey{Source: sshkeys.SourceInline, Private: o.R10kKeyData}, nil
	case o.R10kGenerateKey:
		return &sshkeys.DeployKey{Source: sshkeys.SourceGenerate}, nil
	}

	if r10k.IsSSH(repo) {
		s.Printer.Important("The repository URI appears to use SSH. You likely need to provide a deploy key")
	}
	if p.SkipPrompts {
		return nil, nil
	}
	private, err := s.ask("Do you need to use an SSH key to access this repository?")
	if err != nil || !private {
		return nil, err
	}
	onDisk, err := s.ask("Do you already have a deploy key for the repository on disk?")
	if err != nil {
		return nil, err
	}
	if !onDisk {
		return &sshkeys.DeployKey{Source: sshkeys.SourceGenerate}, nil
	}
	path, err := s.Prompter.PromptValidated(s.rc.Ctx, "Path to the deploy key", existingPath)
	if err != nil {
		return nil, err
	}
	return readDeployKey(path)
}

// existingAccount accepts a well-formed user name that exists on this host.
func (s *session) existingAccount(raw string) (string, error) {
	name, err := Validate(FieldUsername, raw)
	if err != nil {
		return "", err
	}
	lookup := s.LookupOwner
	if lookup == nil {
		lookup = sshkeys.LookupOwner
	}
	if _, err := lookup(name); err != nil {
		return "", eos_err.NewValidationError(
			fmt.Sprintf("deploy key owner %q does not exist on this host", name),
			"Create the account first or pass --r10k-repository-key-owner with an existing user")
	}
	return name, nil
}

func readDeployKey(path string) (*sshkeys.DeployKey, error) {
	key, err := sshkeys.ReadKeyFile(path)
	if err != nil {
		return nil, eos_err.NewValidationError(err.Error(), "Check the deploy key path and its permissions")
	}
	return key, nil
}

func (s *session) resolveSecrets() error {
	o, p := s.opts, s.plan

	privPath, pubPath := o.EyamlPrivateKey, o.EyamlPublicKey
	if privPath == "" && !p.SkipPrompts {
		use, err := s.ask("Would you like to use eyaml encryption?")
		if err != nil || !use {
			return err
		}
		if privPath, err = s.Prompter.PromptValidated(s.rc.Ctx, "Path to your eyaml PRIVATE key", existingPath); err != nil {
			return err
		}
		if pubPath, err = s.Prompter.PromptValidated(s.rc.Ctx, "Path to your eyaml PUBLIC key", existingPath); err != nil {
			return err
		}
	}
	if privPath == "" {
		return nil
	}

	keys, err := puppet.ReadEyamlKeys(privPath, pubPath)
	if err != nil {
		return eos_err.NewValidationError(err.Error(), "Check the eyaml key paths and their permissions")
	}
	p.Secrets = &Secrets{
		Keys:         keys,
		KeyDir:       firstNonEmpty(o.EyamlKeyPath, puppet.DefaultEyamlKeyDir),
		EyamlVersion: o.HieraEyamlVersion,
	}
	return nil
}

// required returns a valid value for field. A bad or missing value is fatal
// when unattended and re-prompted otherwise.
func (s *session) required(label, flag string, field Field, value string) (string, error) {
	if value != "" {
		v, err := Validate(field, value)
		if err == nil {
			return v, nil
		}
		if s.plan.Unattended {
			return "", err
		}
		s.Printer.Error("%v", err)
	} else if s.plan.Unattended {
		return "", eos_err.NewValidationError(
			fmt.Sprintf("%s is required in unattended mode", label),
			fmt.Sprintf("Pass --%s", flag))
	}
	return s.prompt(label, field)
}

func (s *session) prompt(label string, field Field) (string, error) {
	return s.Prompter.PromptValidated(s.rc.Ctx, label, validator(field))
}

func (s *session) ask(question string) (bool, error) {
	return s.Prompter.PromptYesNo(s.rc.Ctx, question)
}

func existingPath(raw string) (string, error) {
	path, err := Validate(FieldNonEmpty, raw)
	if err != nil {
		return "", err
	}
	if !eos_io.FileExists(path) {
		return "", eos_err.NewValidationErrorf("the path %s does not exist", path)
	}
	return path, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
