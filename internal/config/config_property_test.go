//go:build property

package config

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigurationProperties tests configuration loading and validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("identifier scope prefixes are accepted", prop.ForAll(
		func(prefix string) bool {
			v := viper.New()
			v.Set("build.scope_prefix", prefix)
			config, err := LoadFrom(v)
			return err == nil && config.Build.ScopePrefix == prefix
		},
		gen.Identifier(),
	))

	properties.Property("any dotted alphanumeric extension pair is accepted when distinct", prop.ForAll(
		func(src, out string) bool {
			v := viper.New()
			v.Set("build.source_ext", "."+src)
			v.Set("build.output_ext", "."+out)
			_, err := LoadFrom(v)
			if src == out {
				return err != nil
			}
			return err == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("whitespace indents are accepted", prop.ForAll(
		func(n int, tabs bool) bool {
			unit := " "
			if tabs {
				unit = "\t"
			}
			indent := ""
			for i := 0; i < n; i++ {
				indent += unit
			}
			v := viper.New()
			v.Set("build.indent", indent)
			config, err := LoadFrom(v)
			return err == nil && config.Build.Indent == indent
		},
		gen.IntRange(1, 8), gen.Bool(),
	))

	properties.TestingRun(t)
}
