package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/coco/internal/logging"
)

// AddFlagValidation adds validation for a specific flag. Persistent flags are
// looked up as well.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(flagName)
	}
	if flag == nil {
		return
	}

	// Store original value setter
	originalSet := flag.Value.Set

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: originalSet,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateChoice accepts exactly one of choices.
func ValidateChoice(choices ...string) func(string) error {
	return func(val string) error {
		for _, c := range choices {
			if val == c {
				return nil
			}
		}
		return fmt.Errorf("unsupported value %q (supported: %s)", val, strings.Join(choices, ", "))
	}
}

// ValidateLogLevel accepts the level names understood by the logger.
func ValidateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}
