// Package cmd provides the command-line interface for coco with configuration
// management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports configuration through multiple sources with clear precedence:
//	1. Command-line flags (--config, --log-level) - highest priority
//	2. COCO_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (COCO_LOG_LEVEL, COCO_BUILD_OUTPUT_EXT, etc.)
//	4. Configuration files (.coco.yml) - lowest priority
//
// Usage:
//
//	coco <filename>.vue       compile one component and exit non-zero on failure
//	coco <path> --watch       compile every component below path on change
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/coco/internal/build"
	"github.com/conneroisu/coco/internal/config"
	"github.com/conneroisu/coco/internal/logging"
)

var (
	cfgFile   string
	watchMode bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coco [file|path]",
	Short: "Compile single-file components into ES modules",
	Long: `coco composes a .vue single-file component (script, pug template and
less/css style sections) into a browser-ready .mjs module next to it.

  coco Card.vue          compile one file immediately
  coco ./src --watch     watch ./src/**/*.vue and recompile on change`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	err := rootCmd.Execute()
	if err != nil && !isReported(err) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		if cmd != rootCmd {
			fmt.Fprintln(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		printUsage(cmd.OutOrStdout())
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .coco.yml, can also use COCO_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	AddFlagValidation(rootCmd, "log-level", ValidateLogLevel)
	rootCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "watch the path and recompile on change")
}

// initConfig initializes the configuration system with support for multiple config sources.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. COCO_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .coco.yml in current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("COCO_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".coco")
	}

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	// A missing or unreadable config file leaves defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// normalizeArgs maps the single-dash "-help" alias to "--help". Left alone,
// pflag reads it as the bundled shorthands -h -e -l -p.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == "-help" {
			arg = "--help"
		}
		out[i] = arg
	}
	return out
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "coco <filename>.vue ... process single file immediately")
	fmt.Fprintln(w, `coco <path> --watch ... install watcher for "<path>/**/*.vue"`)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && (args[0] == "h" || args[0] == "help") {
		printUsage(cmd.OutOrStdout())
		return nil
	}
	if len(args) == 0 && !watchMode {
		printUsage(cmd.OutOrStdout())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	if watchMode {
		root := cfg.Watch.Root
		if len(args) == 1 {
			root = args[0]
		}
		return runWatch(cmd, cfg, logger, root)
	}

	return runCompile(cmd, cfg, logger, args[0])
}

// runCompile compiles one file. Any fault is returned so the process exits
// non-zero; it has already been reported.
func runCompile(cmd *cobra.Command, cfg *config.Config, logger logging.Logger, path string) error {
	src := path
	if src != "" {
		abs, err := filepath.Abs(src)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		src = abs
	}

	fmt.Fprintf(cmd.OutOrStdout(), "composing component %q\n", src)

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	pipeline := newPipeline(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr(), wd)
	if err := pipeline.Process(cmd.Context(), build.Job{Path: src}); err != nil {
		return reported{err}
	}
	return nil
}

// reported marks an error the pipeline already printed.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

func isReported(err error) bool {
	var r reported
	return errors.As(err, &r)
}
