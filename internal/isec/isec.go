package isec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vcf-isec/internal/vcf"
)

// Toolkit is the set of external toolkit operations the pipeline
// invokes. *bcftools.Tools satisfies it.
type Toolkit interface {
	// Sort writes a position-sorted, BGZF-compressed copy of in to out.
	Sort(ctx context.Context, in, out string) error
	// Index writes a tabix index for the compressed VCF at gz to idx.
	Index(ctx context.Context, gz, idx string) error
	// Isec runs the set operation between two prepared VCFs, writing
	// its numbered output files into dir.
	Isec(ctx context.Context, first, second, dir string) error
	// ViewCompress rewrites in as an indexed, BGZF-compressed VCF at
	// out.
	ViewCompress(ctx context.Context, in, out string) error
	// Merge combines the compressed VCFs ins into a single plain VCF at
	// out.
	Merge(ctx context.Context, out string, ins ...string) error
}

// Names of the files the toolkit's set operation writes into its
// working directory.
const (
	isecOnlyFirst    = "0000.vcf" // records private to the first file
	isecOnlySecond   = "0001.vcf" // records private to the second file
	isecSharedFirst  = "0002.vcf" // first file's records shared by both
	isecSharedSecond = "0003.vcf" // second file's records shared by both
)

// OutputFiles lists the comparison VCFs written into the output
// directory.
type OutputFiles struct {
	Intersection string
	OnlyFirst    string
	OnlySecond   string
}

// Result holds the parsed outcome of comparing two variant files.
type Result struct {
	Intersection []*vcf.Variant
	OnlyFirst    []*vcf.Variant
	OnlySecond   []*vcf.Variant
	Files        OutputFiles
}

// Intersection runs the toolkit's set operation between two prepared
// files and stitches its numbered outputs into a Result: one
// complement VCF per input plus a merged intersection VCF.
type Intersection struct {
	tools   Toolkit
	policy  Policy
	first   *PreparedFile
	second  *PreparedFile
	outDir  string
	workDir string
	logger  *zap.Logger
}

// NewIntersection returns an Intersection writing its outputs into
// outDir. The set operation itself runs in a private temporary
// directory unless SetWorkDir overrides it.
func NewIntersection(tools Toolkit, policy Policy, first, second *PreparedFile, outDir string) *Intersection {
	return &Intersection{
		tools:  tools,
		policy: policy,
		first:  first,
		second: second,
		outDir: outDir,
		logger: zap.NewNop(),
	}
}

// SetWorkDir makes the set operation run in dir instead of a temporary
// directory, keeping its raw output files around afterwards.
func (x *Intersection) SetWorkDir(dir string) {
	x.workDir = dir
}

// SetLogger sets the logger used by the Intersection.
func (x *Intersection) SetLogger(logger *zap.Logger) {
	x.logger = logger
}

// Run executes the comparison. The temporary working directory is
// removed on every return path; the output directory holds the three
// result VCFs on success.
func (x *Intersection) Run(ctx context.Context) (*Result, error) {
	if err := x.approveTargets(); err != nil {
		return nil, err
	}

	workDir := x.workDir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "vcf-isec-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	} else {
		if err := os.RemoveAll(workDir); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return nil, err
		}
	}

	x.logger.Info("running set operation",
		zap.String("first", x.first.Path),
		zap.String("second", x.second.Path),
		zap.String("dir", workDir))
	if err := x.tools.Isec(ctx, x.first.Path, x.second.Path, workDir); err != nil {
		return nil, &IntersectError{Op: "isec", Err: err}
	}

	files, err := x.mergeOutputs(ctx, workDir)
	if err != nil {
		return nil, err
	}
	return x.gather(files)
}

// approveTargets asks the policy about every directory Run will
// replace, before anything is touched.
func (x *Intersection) approveTargets() error {
	for _, dir := range []string{x.outDir, x.workDir} {
		if dir == "" {
			continue
		}
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return &FileFormatError{Path: dir}
		}
		ok, err := x.policy.ApproveReplace(dir)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}
	return nil
}

// mergeOutputs turns the four numbered set-operation files into the
// three result VCFs. The two shared subsets must agree on their record
// count before they are merged.
func (x *Intersection) mergeOutputs(ctx context.Context, workDir string) (*OutputFiles, error) {
	if err := os.RemoveAll(x.outDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(x.outDir, 0o755); err != nil {
		return nil, err
	}

	files := &OutputFiles{
		Intersection: filepath.Join(x.outDir, "intersection.vcf"),
		OnlyFirst:    filepath.Join(x.outDir, complementName(x.first.Path)),
		OnlySecond:   filepath.Join(x.outDir, complementName(x.second.Path)),
	}

	if err := copyFile(filepath.Join(workDir, isecOnlyFirst), files.OnlyFirst); err != nil {
		return nil, err
	}
	if err := copyFile(filepath.Join(workDir, isecOnlySecond), files.OnlySecond); err != nil {
		return nil, err
	}

	sharedFirst := filepath.Join(workDir, isecSharedFirst)
	sharedSecond := filepath.Join(workDir, isecSharedSecond)
	nFirst, err := vcf.CountRecords(sharedFirst)
	if err != nil {
		return nil, err
	}
	nSecond, err := vcf.CountRecords(sharedSecond)
	if err != nil {
		return nil, err
	}
	if nFirst != nSecond {
		return nil, &IntersectError{
			Op: "merge",
			Err: fmt.Errorf("shared subsets disagree: %d records in %s, %d in %s",
				nFirst, sharedFirst, nSecond, sharedSecond),
		}
	}

	intermediates := []string{
		filepath.Join(x.outDir, "intersection-1.vcf.gz"),
		filepath.Join(x.outDir, "intersection-2.vcf.gz"),
	}
	if err := x.tools.ViewCompress(ctx, sharedFirst, intermediates[0]); err != nil {
		return nil, &IntersectError{Op: "view", Err: err}
	}
	if err := x.tools.ViewCompress(ctx, sharedSecond, intermediates[1]); err != nil {
		return nil, &IntersectError{Op: "view", Err: err}
	}

	x.logger.Info("merging shared subsets",
		zap.Int("records", nFirst),
		zap.String("target", files.Intersection))
	if err := x.tools.Merge(ctx, files.Intersection, intermediates...); err != nil {
		return nil, &IntersectError{Op: "merge", Err: err}
	}

	// Drop the compressed intermediates and the indexes written next to
	// them.
	matches, err := filepath.Glob(filepath.Join(x.outDir, "intersection-*"))
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// gather parses the three result VCFs back into variant records.
func (x *Intersection) gather(files *OutputFiles) (*Result, error) {
	shared, err := vcf.ReadAll(files.Intersection)
	if err != nil {
		return nil, err
	}
	onlyFirst, err := vcf.ReadAll(files.OnlyFirst)
	if err != nil {
		return nil, err
	}
	onlySecond, err := vcf.ReadAll(files.OnlySecond)
	if err != nil {
		return nil, err
	}
	return &Result{
		Intersection: shared,
		OnlyFirst:    onlyFirst,
		OnlySecond:   onlySecond,
		Files:        *files,
	}, nil
}

// complementName derives the name of a complement VCF from the
// compressed file it was computed against: sample.vcf.gz becomes
// sample_setdiff.vcf.
func complementName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".vcf")
	return base + "_setdiff.vcf"
}
