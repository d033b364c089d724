// pkg/cli/cli.go
//
// Flag and configuration plumbing shared by the commands. Values resolve in
// this order: explicit flag, PUPPETSTRAP_* environment variable, --config
// YAML file, flag default.
package cli

import (
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "PUPPETSTRAP"

// BindFlagsToViper binds all flags on a command to a Viper instance.
func BindFlagsToViper(cmd *cobra.Command, v *viper.Viper) error {
	var result error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result
}

// SetViperEnvPrefix lets Viper read env with prefix, mapping dashes to underscores.
func SetViperEnvPrefix(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// LoadSettings builds a Viper for cmd: flags bound, env prefix applied and the
// optional config file merged underneath.
func LoadSettings(cmd *cobra.Command, configFile string) (*viper.Viper, error) {
	v := viper.New()
	if err := BindFlagsToViper(cmd, v); err != nil {
		return nil, cerr.Wrap(err, "bind flags")
	}
	SetViperEnvPrefix(v, EnvPrefix)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, cerr.WithHint(
				cerr.Wrapf(err, "read config file %s", configFile),
				"the config file must be YAML with keys named after the long flags")
		}
	}
	return v, nil
}

// Explicit reports whether a setting was given by flag, environment or config
// file rather than falling through to the flag default.
func Explicit(cmd *cobra.Command, v *viper.Viper, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		return true
	}
	return v.InConfig(name) || envSet(name)
}

func envSet(name string) bool {
	key := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_").Replace(name))
	_, ok := os.LookupEnv(key)
	return ok
}
