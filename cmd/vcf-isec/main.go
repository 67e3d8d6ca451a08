// Package main provides the vcf-isec command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vcf-isec/internal/bcftools"
	"github.com/inodb/vcf-isec/internal/duckdb"
	"github.com/inodb/vcf-isec/internal/isec"
	"github.com/inodb/vcf-isec/internal/logging"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errReported marks failures that were already logged with full
// context, so main does not print them a second time.
var errReported = errors.New("error already reported")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errReported) {
			return ExitError
		}
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Received termination signal. Exiting now!")
			return ExitError
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var isecDir string

	cmd := &cobra.Command{
		Use:   "vcf-isec [flags] FILE1 FILE2",
		Short: "Compare the variants of two VCF files",
		Long: `vcf-isec compares two variant files with the bcftools toolkit.

Both inputs are staged as BGZF-compressed, tabix-indexed files (plain
.vcf inputs are sort-compressed first), then intersected. The output
directory receives one VCF per subset: the variants unique to each
input and the merged intersection. A summary of the three counts is
printed at the end.`,
		Example: `  vcf-isec a.vcf b.vcf
  vcf-isec --prefix staging --output results a.vcf.gz b.vcf
  vcf-isec -y --db results.duckdb a.vcf b.vcf`,
		Args:          cobra.ExactArgs(2),
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd.Context(), args[0], args[1], isecDir)
		},
	}

	flags := cmd.Flags()
	flags.StringP("prefix", "p", "", "staging directory for compressed files and indexes (default: private temp dir)")
	flags.StringP("output", "o", "output", "directory receiving the three result VCFs")
	flags.StringVar(&isecDir, "isec-dir", "", "keep the toolkit's raw set-operation files in this directory")
	flags.String("db", "", "record the comparison in this DuckDB database")
	flags.String("bcftools", "", "bcftools executable to invoke")
	flags.String("logs", "logs", "directory for per-run log files")
	flags.BoolP("yes", "y", false, "assume yes: reuse existing artifacts and approve all writes")

	viper.BindPFlag("prefix", flags.Lookup("prefix"))
	viper.BindPFlag("output", flags.Lookup("output"))
	viper.BindPFlag("db", flags.Lookup("db"))
	viper.BindPFlag("bcftools.path", flags.Lookup("bcftools"))
	viper.BindPFlag("logs.dir", flags.Lookup("logs"))
	viper.BindPFlag("assume_yes", flags.Lookup("yes"))

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newQueryCmd())

	return cmd
}

func runCompare(ctx context.Context, first, second, isecDir string) error {
	logger, logPath, err := logging.New(viper.GetString("logs.dir"))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer logger.Sync()
	logger.Debug("logging to file", zap.String("path", logPath))

	if err := compare(ctx, logger, first, second, isecDir); err != nil {
		reportError(ctx, logger, err)
		return errReported
	}
	return nil
}

func compare(ctx context.Context, logger *zap.Logger, first, second, isecDir string) error {
	tools := bcftools.New(viper.GetString("bcftools.path"))
	tools.SetLogger(logger)

	var policy isec.Policy = isec.NewPrompt()
	if viper.GetBool("assume_yes") {
		policy = isec.AssumeYes()
	}

	// Relocated staging artifacts land in the prefix; without one they
	// go to a private directory removed when the run ends.
	prefix := viper.GetString("prefix")
	if prefix == "" {
		tmp, err := os.MkdirTemp("", "vcf-isec-staging-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		prefix = tmp
	}

	prep := isec.NewPreparer(tools, policy, prefix)
	prep.SetLogger(logger)

	a, err := prep.Prepare(ctx, first)
	if err != nil {
		return err
	}
	b, err := prep.Prepare(ctx, second)
	if err != nil {
		return err
	}

	outputDir := viper.GetString("output")
	x := isec.NewIntersection(tools, policy, a, b, outputDir)
	x.SetLogger(logger)
	if isecDir != "" {
		x.SetWorkDir(isecDir)
	}

	res, err := x.Run(ctx)
	if err != nil {
		return err
	}

	if dbPath := viper.GetString("db"); dbPath != "" {
		if err := record(dbPath, first, second, outputDir, res, logger); err != nil {
			return err
		}
	}

	fmt.Printf("Unique to %s: %d\n", filepath.Base(first), len(res.OnlyFirst))
	fmt.Printf("Unique to %s: %d\n", filepath.Base(second), len(res.OnlySecond))
	fmt.Printf("Shared Variants: %d\n", len(res.Intersection))
	return nil
}

// record stores the comparison in the results database.
func record(dbPath, first, second, outputDir string, res *isec.Result, logger *zap.Logger) error {
	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	fpFirst, err := duckdb.StatFile(first)
	if err != nil {
		return err
	}
	fpSecond, err := duckdb.StatFile(second)
	if err != nil {
		return err
	}

	id, err := store.RecordComparison(fpFirst, fpSecond, outputDir, res)
	if err != nil {
		return err
	}
	logger.Info("recorded comparison",
		zap.Int64("id", id),
		zap.String("db", dbPath))
	return nil
}

// reportError logs a pipeline failure with the message class the user
// should see.
func reportError(ctx context.Context, logger *zap.Logger, err error) {
	var (
		formatErr    *isec.FileFormatError
		intersectErr *isec.IntersectError
		pathErr      *fs.PathError
	)
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		logger.Error("Received termination signal. Exiting now!")
	case errors.Is(err, isec.ErrAborted):
		logger.Error("Aborted!")
	case errors.As(err, &formatErr), errors.As(err, &intersectErr):
		logger.Error(err.Error())
	case errors.Is(err, fs.ErrNotExist):
		logger.Error(fmt.Sprintf("File not found: %v", err))
	case errors.As(err, &pathErr):
		logger.Error(fmt.Sprintf("File system error: %v", err))
	default:
		logger.Error(fmt.Sprintf("Unhandled exception: %v", err))
	}
}
