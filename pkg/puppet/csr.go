// pkg/puppet/csr.go
//
// Certificate signing request extension attributes. Puppet reads
// csr_attributes.yaml when the agent first generates its CSR, so the file
// must be in place before the first agent run.

package puppet

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultCSRAttributesPath is where Puppet looks for CSR attributes.
const DefaultCSRAttributesPath = "/etc/puppetlabs/puppet/csr_attributes.yaml"

// RegistrationExtensions are the pp_* short names Puppet maps to its
// registered certificate extension OIDs.
var RegistrationExtensions = []string{
	"pp_uuid",
	"pp_instance_id",
	"pp_image_name",
	"pp_preshared_key",
	"pp_cost_center",
	"pp_product",
	"pp_project",
	"pp_application",
	"pp_service",
	"pp_employee",
	"pp_created_by",
	"pp_environment",
	"pp_role",
	"pp_software_version",
	"pp_department",
	"pp_cluster",
	"pp_provisioner",
	"pp_region",
	"pp_datacenter",
	"pp_zone",
	"pp_network",
	"pp_securitypolicy",
	"pp_cloudplatform",
	"pp_apptier",
	"pp_hostname",
}

// AuthorizationExtensions are the short names for authorization extensions.
var AuthorizationExtensions = []string{"pp_authorization", "pp_auth_role"}

var allowedExtensions = func() map[string]bool {
	m := map[string]bool{}
	for _, n := range RegistrationExtensions {
		m[n] = true
	}
	for _, n := range AuthorizationExtensions {
		m[n] = true
	}
	return m
}()

// IsAllowedExtension reports whether name is a recognised short name.
func IsAllowedExtension(name string) bool {
	return allowedExtensions[name]
}

// ExtensionAttributes maps extension short names to their values.
type ExtensionAttributes map[string]string

// ParseExtensionAttributes decodes a JSON object such as
// {"pp_role":"web","pp_environment":"prod"}.
func ParseExtensionAttributes(raw string) (ExtensionAttributes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var attrs ExtensionAttributes
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, eos_err.NewValidationError(
			"CSR extensions must be a JSON object of strings",
			`Pass e.g. --csr-extensions '{"pp_role":"web"}'`)
	}
	return attrs, nil
}

// Keys returns the attribute names in sorted order.
func (a ExtensionAttributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks every key and reports all unknown names at once.
func (a ExtensionAttributes) Validate() error {
	var result *multierror.Error
	for _, k := range a.Keys() {
		if !IsAllowedExtension(k) {
			result = multierror.Append(result, cerr.Newf("invalid extension short name: %s", k))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return eos_err.NewValidationError(err.Error(),
			"Use one of the pp_* registration or authorization extension short names")
	}
	return nil
}

type csrDocument struct {
	ExtensionRequests map[string]string `yaml:"extension_requests"`
}

// WriteCSRAttributes validates attrs and writes them to path. Nothing is
// written if any key is rejected. It returns false when the file already
// held identical content.
func WriteCSRAttributes(rc *eos_io.RuntimeContext, path string, attrs ExtensionAttributes) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if err := attrs.Validate(); err != nil {
		return false, err
	}
	if len(attrs) == 0 {
		return false, nil
	}

	changed, err := eos_io.WriteYAML(rc.Ctx, path, csrDocument{ExtensionRequests: attrs}, 0640)
	if err != nil {
		return false, cerr.Wrap(err, "write CSR extension attributes")
	}
	logger.Info("CSR extension attributes written",
		zap.String("path", path),
		zap.Strings("keys", attrs.Keys()),
		zap.Bool("changed", changed))
	return changed, nil
}
