// pkg/bootstrap/plan.go

package bootstrap

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/sshkeys"
)

// Role selects which side of the Puppet install this host becomes.
type Role string

const (
	RoleAgent  Role = "agent"
	RoleServer Role = "server"
)

// ParseRole accepts "agent" or "server".
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAgent:
		return RoleAgent, nil
	case RoleServer:
		return RoleServer, nil
	}
	return "", eos_err.NewValidationErrorf("unknown role %q (expected agent or server)", s)
}

// App is the package that carries the role.
func (r Role) App() packages.App {
	if r == RoleServer {
		return packages.Server
	}
	return packages.Agent
}

const redacted = "<redacted>"

// Plan is the resolved set of decisions for one run. It is not modified
// after confirmation, except that the hostname stage may adopt the new
// hostname as CertName.
type Plan struct {
	Role    Role
	Version packages.Version
	// AgentVersion is set when the server role also pins puppet-agent.
	AgentVersion *packages.Version

	Server      string
	Port        int
	Environment string
	Domain      string

	CurrentHostname string
	Hostname        string
	CertName        string

	CSR         puppet.ExtensionAttributes
	WaitForCert int

	PullDeploy *PullDeploy
	Secrets    *Secrets

	Unattended         bool
	SkipPrompts        bool
	SkipConfirmation   bool
	SkipInitialRun     bool
	EnableService      bool
	RemoveOriginalKeys bool

	PuppetBin       string
	PuppetserverBin string
}

// PullDeploy configures r10k on the server.
type PullDeploy struct {
	Repository string
	RepoName   string
	Origin     string
	// Key is nil for public repositories.
	Key         *sshkeys.DeployKey
	KeyOwner    string
	KeyName     string
	Environment string
	HieraFile   string
	ApplyClass  string
	R10kVersion string
	Provider    string
	R10kBin     string
}

// Generate reports whether a fresh key will be created.
func (p *PullDeploy) Generate() bool {
	return p.Key != nil && p.Key.Source == sshkeys.SourceGenerate
}

// Secrets configures hiera-eyaml on the server.
type Secrets struct {
	Keys         puppet.EyamlKeys
	KeyDir       string
	EyamlVersion string
}

func (p *Plan) versionLabel() string {
	if p.Version.Exact != "" {
		return p.Version.Exact
	}
	return p.Version.Major + " (latest available)"
}

// secretExtensions are CSR attributes whose values act as credentials.
var secretExtensions = map[string]bool{
	"pp_preshared_key": true,
	"pp_authorization": true,
}

// Summary renders the plan for the confirmation gate. Output is stable for
// a given plan and never includes key material.
func (p *Plan) Summary() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, "    - "+format+"\n", args...)
	}

	if p.Role == RoleServer {
		b.WriteString("The Puppet server will be configured with the following settings:\n\n")
		line("Puppetserver version: %s", p.versionLabel())
		if p.AgentVersion != nil {
			line("Puppet agent version: %s", p.AgentVersion)
		}
	} else {
		b.WriteString("Puppet will be installed and configured with the following settings:\n\n")
		line("Puppet agent version: %s", p.versionLabel())
		line("Puppet server: %s", p.Server)
		line("Puppet port: %d", p.Port)
		line("Puppet environment: %s", p.Environment)
	}
	line("Hostname: %s", p.Hostname)
	if p.CertName != "" {
		line("Certificate name: %s", p.CertName)
	}

	if p.Role == RoleServer {
		if pd := p.PullDeploy; pd != nil {
			line("r10k: enabled")
			if pd.R10kVersion != "" {
				line("r10k version: %s", pd.R10kVersion)
			}
			line("r10k repository: %s", pd.Repository)
			line("r10k git provider: %s", pd.Provider)
			switch {
			case pd.Key == nil:
				line("r10k repository key: none (public repository)")
			case pd.Generate():
				line("r10k repository key: will be generated")
			default:
				line("r10k repository key: %s", redacted)
				if p.RemoveOriginalKeys && pd.Key.OriginalPath != "" {
					line("r10k repository key will be removed after writing to the correct location")
				}
			}
			if pd.Key != nil {
				line("r10k repository key owner: %s", pd.KeyOwner)
			}
			line("Bootstrap environment: %s", pd.Environment)
			line("Bootstrap Hiera file: %s", pd.HieraFile)
			if pd.ApplyClass != "" {
				line("Puppetserver class: %s", pd.ApplyClass)
			}
		} else {
			line("r10k: disabled")
		}

		if s := p.Secrets; s != nil {
			line("eyaml encryption: enabled")
			line("eyaml private key: %s", redacted)
			line("eyaml key path: %s", s.KeyDir)
			if s.EyamlVersion != "" {
				line("hiera-eyaml version: %s", s.EyamlVersion)
			}
			if p.RemoveOriginalKeys {
				line("eyaml keys will be removed after writing to the correct location")
			}
		} else {
			line("eyaml encryption: disabled")
		}
	}

	if len(p.CSR) > 0 {
		line("CSR extension attributes:")
		for _, k := range p.CSR.Keys() {
			value := p.CSR[k]
			if secretExtensions[k] {
				value = redacted
			}
			fmt.Fprintf(&b, "        - %s: %s\n", k, value)
		}
	}
	if p.Role == RoleAgent {
		if p.SkipInitialRun {
			line("Initial Puppet run: skipped")
		} else if p.WaitForCert > 0 {
			line("Wait for certificate: %d seconds", p.WaitForCert)
		}
	}
	line("Enable the Puppet service: %t", p.EnableService)
	return b.String()
}
