// Package bcftools shells out to the bcftools toolkit for the
// compression, indexing, and set operations this tool orchestrates.
// Each command is an opaque collaborator: arguments in, files out,
// stderr folded into the returned error on failure.
package bcftools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// DefaultPath is the executable resolved on PATH when no explicit
// path is configured.
const DefaultPath = "bcftools"

// Tools runs bcftools subcommands as blocking subprocesses.
type Tools struct {
	path   string
	logger *zap.Logger
}

// New returns a Tools invoking the executable at path, or DefaultPath
// when path is empty.
func New(path string) *Tools {
	if path == "" {
		path = DefaultPath
	}
	return &Tools{path: path, logger: zap.NewNop()}
}

// SetLogger sets the logger used for command tracing.
func (t *Tools) SetLogger(l *zap.Logger) {
	t.logger = l
}

// run executes a single bcftools subcommand. Stderr is captured and
// appended to the returned error so toolkit diagnostics survive the
// subprocess boundary.
func (t *Tools) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debug("running command", zap.String("cmd", strings.Join(cmd.Args, " ")))

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s %s: %w: %s",
				t.path, args[0], err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s %s: %w", t.path, args[0], err)
	}
	return nil
}

// Sort sorts a VCF and writes it BGZF-compressed to out.
func (t *Tools) Sort(ctx context.Context, in, out string) error {
	return t.run(ctx, "sort", "-Oz", "-o", out, in)
}

// Index writes a tabix index for the compressed VCF at gz to idx,
// replacing any stale index.
func (t *Tools) Index(ctx context.Context, gz, idx string) error {
	return t.run(ctx, "index", "--tbi", "--force", "-o", idx, gz)
}

// Isec runs the set operation on two compressed, indexed VCFs and
// writes its four output files under dir: 0000.vcf with records
// private to the first file, 0001.vcf with records private to the
// second, and 0002.vcf/0003.vcf with each file's subset of the
// shared records.
func (t *Tools) Isec(ctx context.Context, first, second, dir string) error {
	return t.run(ctx, "isec", "--prefix="+dir, "-w", "1,2", first, second)
}

// ViewCompress rewrites a VCF BGZF-compressed to out with an index
// written beside it.
func (t *Tools) ViewCompress(ctx context.Context, in, out string) error {
	return t.run(ctx, "view", "-Oz", "-o", out, "--write-index", in)
}

// Merge merges compressed, indexed VCFs into a single plain VCF at
// out, renaming colliding sample columns instead of failing.
func (t *Tools) Merge(ctx context.Context, out string, ins ...string) error {
	args := []string{"merge", "--force-samples", "-Ov", "-o", out}
	args = append(args, ins...)
	return t.run(ctx, args...)
}
