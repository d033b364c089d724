// pkg/bootstrap/stages.go

package bootstrap

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/r10k"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/sshkeys"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	eyamlGem = "hiera-eyaml"
	r10kGem  = "r10k"
)

func changedStatus(changed bool) Status {
	if changed {
		return StatusSucceeded
	}
	return StatusSatisfied
}

func (o *Orchestrator) runHostname(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	changed, err := o.Hosts.Set(rc, plan.CurrentHostname, plan.Hostname)
	if err != nil {
		return StatusFatal, "", err
	}
	if plan.CertName == "" {
		plan.CertName = plan.Hostname
	}
	if !changed {
		return StatusSatisfied, "hostname already " + plan.Hostname, nil
	}
	return StatusSucceeded, fmt.Sprintf("hostname changed from %s to %s", plan.CurrentHostname, plan.Hostname), nil
}

func (o *Orchestrator) runPackages(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	type want struct {
		app packages.App
		v   packages.Version
	}
	// puppet-agent goes first so puppetserver finds a matching agent
	var wants []want
	if plan.Role == RoleServer && plan.AgentVersion != nil {
		wants = append(wants, want{packages.Agent, *plan.AgentVersion})
	}
	wants = append(wants, want{plan.Role.App(), plan.Version})

	var installed []string
	for _, w := range wants {
		changed, err := o.Installer.Ensure(rc, w.app, w.v)
		if err != nil {
			return StatusFatal, "", err
		}
		if changed {
			installed = append(installed, fmt.Sprintf("%s %s", w.app.PackageName(), w.v))
		}
	}
	if len(installed) == 0 {
		return StatusSatisfied, "already installed", nil
	}
	return StatusSucceeded, "installed " + strings.Join(installed, ", "), nil
}

func (o *Orchestrator) runCredential(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	changed, err := puppet.WriteCSRAttributes(rc, o.CSRPath, plan.CSR)
	if err != nil {
		return StatusFatal, "", err
	}
	return changedStatus(changed), o.CSRPath, nil
}

// configSettings lists the puppet.conf settings for plan in a fixed order.
func configSettings(plan *Plan) []puppet.Setting {
	var out []puppet.Setting
	if plan.Role == RoleAgent {
		out = append(out,
			puppet.Setting{Section: "main", Key: "server", Value: plan.Server},
			puppet.Setting{Section: "main", Key: "masterport", Value: strconv.Itoa(plan.Port)})
	}
	if plan.CertName != "" {
		out = append(out, puppet.Setting{Section: "main", Key: "certname", Value: plan.CertName})
	}
	switch {
	case plan.Role == RoleAgent:
		out = append(out, puppet.Setting{Section: "agent", Key: "environment", Value: plan.Environment})
	case plan.PullDeploy != nil:
		out = append(out, puppet.Setting{Section: "agent", Key: "environment", Value: plan.PullDeploy.Environment})
	}
	return out
}

func (o *Orchestrator) runConfiguration(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	settings := configSettings(plan)
	if err := o.Puppet.SetConfig(rc, settings); err != nil {
		return StatusFatal, "", err
	}
	return StatusSucceeded, fmt.Sprintf("%d settings applied", len(settings)), nil
}

// ensureRubyGems installs the system rubygems package both gem-based tools
// need.
func (o *Orchestrator) ensureRubyGems(rc *eos_io.RuntimeContext) (bool, error) {
	name := "ruby-rubygems"
	if o.Installer.Facts != nil && o.Installer.Facts.PackageManager == platform.Yum {
		name = "rubygems"
	}
	present, err := o.Installer.Manager.IsInstalled(rc, name)
	if err != nil || present {
		return false, err
	}
	if err := o.Installer.Manager.Install(rc, name, ""); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) runSecrets(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	s := plan.Secrets
	changed, err := o.ensureRubyGems(rc)
	if err != nil {
		return StatusFatal, "", err
	}
	for _, gems := range []*puppet.GemInstaller{o.Gems, o.ServerGems} {
		c, err := gems.Ensure(rc, eyamlGem, s.EyamlVersion)
		if err != nil {
			return StatusFatal, "", err
		}
		changed = changed || c
	}

	paths := puppet.EyamlPaths{
		Private: filepath.Join(s.KeyDir, puppet.EyamlPrivateKeyName),
		Public:  filepath.Join(s.KeyDir, puppet.EyamlPublicKeyName),
	}
	if eos_io.FileHasContent(paths.Private, []byte(s.Keys.Private)) &&
		eos_io.FileHasContent(paths.Public, []byte(s.Keys.Public)) {
		otelzap.Ctx(rc.Ctx).Info("eyaml keys already in place", zap.String("dir", s.KeyDir))
	} else {
		if paths, err = puppet.InstallEyamlKeys(rc, s.KeyDir, s.Keys); err != nil {
			return StatusFatal, "", err
		}
		changed = true
	}
	o.run.eyaml = paths
	return changedStatus(changed), "keys in " + s.KeyDir, nil
}

func (o *Orchestrator) layout(pd *PullDeploy) r10k.Layout {
	return r10k.Layout{EnvironmentsDir: o.EnvironmentsDir, Environment: pd.Environment, HieraFile: pd.HieraFile}
}

func (o *Orchestrator) runPullDeployment(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	logger := otelzap.Ctx(rc.Ctx)
	pd := plan.PullDeploy

	if _, err := o.ensureRubyGems(rc); err != nil {
		return StatusFatal, "", err
	}
	if _, err := o.Gems.Ensure(rc, r10kGem, pd.R10kVersion); err != nil {
		return StatusFatal, "", err
	}

	if pd.Key != nil || r10k.IsSSH(pd.Repository) {
		owner, err := o.LookupOwner(pd.KeyOwner)
		if err != nil {
			return StatusFatal, "", err
		}
		if pd.Key != nil {
			path, err := o.placeDeployKey(rc, plan, owner)
			if err != nil {
				return StatusFatal, "", err
			}
			o.run.deployKeyPath = path
			if _, err := sshkeys.EnsureHostIdentity(rc, owner, pd.Origin, path); err != nil {
				return StatusFatal, "", err
			}
		}
		// r10k must not stop at an unknown host key prompt
		if _, err := sshkeys.RegisterHost(rc, o.Scanner, owner, pd.Origin); err != nil {
			return StatusFatal, "", cerr.WithHint(err, "Check "+pd.Origin+" is reachable on port 22")
		}
	}

	cfg := r10k.BuildConfig(r10k.ConfigRequest{
		Remote:          pd.Repository,
		Environment:     pd.Environment,
		EnvironmentsDir: o.EnvironmentsDir,
		CacheDir:        o.R10kCacheDir,
		Provider:        pd.Provider,
		DeployKeyPath:   o.run.deployKeyPath,
	})
	if _, err := r10k.WriteConfig(rc, o.R10kConfigPath, cfg); err != nil {
		return StatusFatal, "", err
	}

	if err := r10k.Deploy(rc, o.Runner, pd.R10kBin); err != nil {
		return StatusFatal, "", err
	}
	layout := o.layout(pd)
	if err := layout.Verify(); err != nil {
		return StatusFatal, "", err
	}
	logger.Info("Control repository deployed", zap.String("environment", layout.EnvironmentPath()))
	return StatusSucceeded, "deployed " + pd.RepoName + " to " + layout.EnvironmentPath(), nil
}

// placeDeployKey installs or generates the deploy key and returns its path.
// A generated key is shown to the operator, who has to register it with the
// repository before the deploy can succeed.
func (o *Orchestrator) placeDeployKey(rc *eos_io.RuntimeContext, plan *Plan, owner *sshkeys.Owner) (string, error) {
	pd := plan.PullDeploy

	if !pd.Generate() {
		key := *pd.Key
		if err := sshkeys.Install(rc, owner, pd.KeyName, &key); err != nil {
			return "", err
		}
		return key.Path, nil
	}

	key, err := sshkeys.Generate(rc, owner, pd.KeyName)
	if err != nil {
		return "", err
	}
	o.Printer.Important("A new deploy key has been generated. Add this public key to %s as a read-only deploy key:", pd.Repository)
	o.Printer.Plain("%s", strings.TrimSpace(key.Public))
	if !plan.Unattended && o.Prompter != nil {
		if err := o.Prompter.WaitForEnter(rc.Ctx, "Press Enter once the key has been added to the repository"); err != nil {
			return "", err
		}
	}
	return key.Path, nil
}

func (o *Orchestrator) runBootstrapApply(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	pd := plan.PullDeploy
	layout := o.layout(pd)
	err := o.Puppet.Apply(rc, puppet.ApplyRequest{
		HieraConfig: layout.HieraPath(),
		ModulePath:  layout.ModulePath(),
		Class:       pd.ApplyClass,
	})
	if err != nil {
		return StatusRecoverable, "", err
	}
	return StatusSucceeded, "applied " + pd.ApplyClass, nil
}

func (o *Orchestrator) runFirstConvergence(rc *eos_io.RuntimeContext, plan *Plan) (Status, string, error) {
	if err := o.Puppet.AgentTest(rc, plan.WaitForCert); err != nil {
		return StatusRecoverable, "", err
	}
	return StatusSucceeded, "first run converged", nil
}

func (o *Orchestrator) runService(rc *eos_io.RuntimeContext, _ *Plan) (Status, string, error) {
	changed, err := o.Services.Enable(rc, PuppetService)
	if err != nil {
		return StatusFatal, "", err
	}
	return changedStatus(changed), PuppetService + " enabled", nil
}

// removeOriginals deletes operator-supplied key files once copied, or
// returns a note telling the operator they may delete them.
func (o *Orchestrator) removeOriginals(rc *eos_io.RuntimeContext, plan *Plan) []string {
	logger := otelzap.Ctx(rc.Ctx)

	type original struct{ what, from, to string }
	var originals []original
	if pd := plan.PullDeploy; pd != nil && pd.Key != nil && pd.Key.OriginalPath != "" && o.run.deployKeyPath != "" {
		originals = append(originals, original{"deploy key", pd.Key.OriginalPath, o.run.deployKeyPath})
	}
	if s := plan.Secrets; s != nil && o.run.eyaml.Private != "" {
		originals = append(originals,
			original{"eyaml private key", s.Keys.PrivateSource, o.run.eyaml.Private},
			original{"eyaml public key", s.Keys.PublicSource, o.run.eyaml.Public})
	}

	var notes []string
	for _, item := range originals {
		if item.from == "" || filepath.Clean(item.from) == filepath.Clean(item.to) {
			continue
		}
		if !plan.RemoveOriginalKeys {
			notes = append(notes, fmt.Sprintf("The %s you provided at %q has been copied to %s, you can now safely delete the original if no longer needed.", item.what, item.from, item.to))
			continue
		}
		removed, err := eos_io.RemoveOriginal(item.from, item.to)
		if err != nil {
			logger.Warn("Could not remove original key", zap.String("path", item.from), zap.Error(err))
			notes = append(notes, fmt.Sprintf("Could not remove the original %s at %q: %v", item.what, item.from, err))
			continue
		}
		if removed {
			logger.Info("Original key removed", zap.String("key", item.what), zap.String("path", item.from))
		}
	}
	return notes
}
