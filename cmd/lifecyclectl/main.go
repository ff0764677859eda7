// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lifecycle.
//
// go-lifecycle is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-lifecycle/pkg/cli"
	"github.com/jeremyhahn/go-lifecycle/pkg/reconcile"
	"github.com/jeremyhahn/go-lifecycle/pkg/version"
)

// Exit codes: 0 all rules reconciled, 1 one or more Failed outcomes,
// 2 validation error (nothing applied).
const (
	exitOK         = 0
	exitFailed     = 1
	exitValidation = 2
)

var (
	cfgFile      string
	viperConfig  *viper.Viper
	globalConfig *cli.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "lifecyclectl",
	Short: "Reconcile declarative storage lifecycle policies against an object store",
	Long: `lifecyclectl reconciles a declarative set of lifecycle rules (transitions to
colder storage tiers, expirations) against the live lifecycle configuration of
an object storage bucket.

Each run fetches the provider's current configuration, computes the minimal
change set, applies it as a single whole-configuration write, and appends the
outcome to an audit log. Runs are idempotent: reconciling twice without drift
applies nothing the second time.

Providers:
  - s3     : AWS S3, or any S3-compatible store via --endpoint (MinIO, Ceph RGW)
  - memory : In-process provider for local experiments

Configuration can be provided via:
  - Command-line flags (highest priority)
  - Environment variables (LIFECYCLE_*)
  - Configuration file (~/.lifecyclectl.yaml or ./.lifecyclectl.yaml)
  - Default values (lowest priority)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		viperConfig, err = cli.InitConfig(cfgFile)
		if err != nil {
			return err
		}

		if err := viperConfig.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("failed to bind flags: %w", err)
		}

		globalConfig = cli.GetConfig(viperConfig)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <bucket>",
	Short: "Reconcile a bucket against the declared rule set",
	Long: `Reconcile the bucket's lifecycle configuration against the rules file.
Drifted provider-side rules are reported but left in place unless --prune is set.`,
	Example: `  lifecyclectl run my-bucket --rules lifecycle.yaml
  lifecyclectl run my-bucket --rules lifecycle.yaml --prune
  lifecyclectl run my-bucket --dry-run --output-format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prune, _ := cmd.Flags().GetBool("prune")     //nolint:errcheck // flags are validated by cobra
		dryRun, _ := cmd.Flags().GetBool("dry-run")  //nolint:errcheck // flags are validated by cobra
		return runOnce(cmd.Context(), args[0], prune, dryRun)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the declared rule set without touching the provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := cli.NewCommandContext(globalConfig)
		if err != nil {
			fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
			return err
		}
		defer func() { _ = ctx.Close() }()

		warnings, err := ctx.Validate()
		if err != nil {
			fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
			return err
		}
		fmt.Print(cli.FormatWarnings(warnings, outputFormat()))
		fmt.Printf("Rule set %q is valid\n", globalConfig.RulesFile)
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <bucket>",
	Short: "Show the change set between declared rules and provider state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := cli.NewCommandContext(globalConfig)
		if err != nil {
			fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
			return err
		}
		defer func() { _ = ctx.Close() }()

		result, err := ctx.Run(cmd.Context(), args[0], false, true)
		if err != nil {
			fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
			return err
		}
		fmt.Print(cli.FormatDiff(result.Diff, outputFormat()))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <bucket>",
	Short: "Re-reconcile whenever the rules file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prune, _ := cmd.Flags().GetBool("prune") //nolint:errcheck // flags are validated by cobra
		bucket := args[0]

		ctx, err := cli.NewCommandContext(globalConfig)
		if err != nil {
			fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
			return err
		}
		defer func() { _ = ctx.Close() }()

		signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Reconcile once up front, then on every change.
		reconcileOnce := func(runCtx context.Context) {
			result, err := ctx.Run(runCtx, bucket, prune, false)
			if err != nil {
				fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
				return
			}
			fmt.Print(cli.FormatResult(result, outputFormat()))
		}
		reconcileOnce(signalCtx)

		err = ctx.WatchRules(signalCtx, reconcileOnce)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Get())
	},
}

func runOnce(ctx context.Context, bucket string, prune, dryRun bool) error {
	cmdCtx, err := cli.NewCommandContext(globalConfig)
	if err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
		return err
	}
	defer func() { _ = cmdCtx.Close() }()

	result, err := cmdCtx.Run(ctx, bucket, prune, dryRun)
	if err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err, outputFormat()))
		return err
	}

	fmt.Print(cli.FormatResult(result, outputFormat()))
	if result.Failed() {
		return errReconcileFailed
	}
	return nil
}

var errReconcileFailed = errors.New("one or more rules failed to reconcile")

func outputFormat() cli.OutputFormat {
	return cli.OutputFormat(globalConfig.OutputFormat)
}

func exitCode(err error) int {
	var validationErr *reconcile.ValidationFailedError
	if errors.As(err, &validationErr) {
		return exitValidation
	}
	if err != nil {
		return exitFailed
	}
	return exitOK
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.lifecyclectl.yaml)")
	rootCmd.PersistentFlags().String("provider", "s3", "provider: s3 or memory")
	rootCmd.PersistentFlags().String("region", "", "provider region")
	rootCmd.PersistentFlags().String("endpoint", "", "custom endpoint for S3-compatible stores")
	rootCmd.PersistentFlags().String("access-key", "", "provider access key")
	rootCmd.PersistentFlags().String("secret-key", "", "provider secret key")
	rootCmd.PersistentFlags().Bool("use-path-style", false, "use path-style addressing (most S3-compatible stores)")
	rootCmd.PersistentFlags().String("rules", "lifecycle.yaml", "path to the rule set file")
	rootCmd.PersistentFlags().String("output-format", "text", "output format: text or json")
	rootCmd.PersistentFlags().String("audit-log", "", "path to the JSONL audit log (empty = operational log only)")
	rootCmd.PersistentFlags().String("hook-url", "", "pre-transition hook webhook URL")
	rootCmd.PersistentFlags().Duration("hook-timeout", 0, "pre-transition hook timeout")
	rootCmd.PersistentFlags().Int("max-attempts", 0, "retry budget for transient provider failures")

	runCmd.Flags().Bool("prune", false, "delete drifted provider rules")
	runCmd.Flags().Bool("dry-run", false, "compute the diff without applying")
	watchCmd.Flags().Bool("prune", false, "delete drifted provider rules")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
