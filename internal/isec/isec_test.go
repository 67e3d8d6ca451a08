package isec

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vcf-isec/internal/bcftools"
)

func preparedInput(t *testing.T, dir, name string) *PreparedFile {
	t.Helper()
	gz := filepath.Join(dir, name)
	require.NoError(t, writeGzip(gz, renderVCF(nil)))
	require.NoError(t, os.WriteFile(gz+".tbi", []byte("TBI\x01"), 0o644))
	return &PreparedFile{Source: gz, Path: gz, Index: gz + ".tbi"}
}

func TestIntersectionRun(t *testing.T) {
	dir := t.TempDir()
	tools := newFakeToolkit()
	tools.isec[isecOnlyFirst] = []string{vcfLine("1", 13116, "rs62635286", "T", "G")}
	tools.isec[isecOnlySecond] = []string{vcfLine("2", 1234567, "rs5839461", "G", "GTA")}
	shared := []string{
		vcfLine("1", 10177, ".", "A", "AC"),
		vcfLine("1", 14930, "rs75454623", "A", "G"),
		vcfLine("2", 45895, ".", "T", "C"),
	}
	tools.isec[isecSharedFirst] = shared
	tools.isec[isecSharedSecond] = shared

	first := preparedInput(t, dir, "cmp-test-a.vcf.gz")
	second := preparedInput(t, dir, "cmp-test-b.vcf.gz")
	outDir := filepath.Join(dir, "output")

	x := NewIntersection(tools, AssumeYes(), first, second, outDir)
	res, err := x.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.OnlyFirst, 1)
	require.Len(t, res.OnlySecond, 1)
	require.Len(t, res.Intersection, 3)
	assert.Equal(t, "rs62635286", res.OnlyFirst[0].ID)
	assert.Equal(t, int64(1234567), res.OnlySecond[0].Pos)
	assert.Equal(t, "rs75454623", res.Intersection[1].ID)

	assert.Equal(t, filepath.Join(outDir, "cmp-test-a_setdiff.vcf"), res.Files.OnlyFirst)
	assert.Equal(t, filepath.Join(outDir, "cmp-test-b_setdiff.vcf"), res.Files.OnlySecond)
	assert.Equal(t, filepath.Join(outDir, "intersection.vcf"), res.Files.Intersection)
	for _, p := range []string{res.Files.OnlyFirst, res.Files.OnlySecond, res.Files.Intersection} {
		assert.FileExists(t, p)
	}

	// Compressed intermediates and the indexes written beside them are
	// cleaned out of the output directory.
	leftovers, err := filepath.Glob(filepath.Join(outDir, "intersection-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	// The private working directory is gone.
	assert.NoDirExists(t, tools.isecDir)

	assert.Equal(t, []string{"isec", "view", "view", "merge"}, tools.calls)
}

func TestIntersectionEmptyOverlap(t *testing.T) {
	dir := t.TempDir()
	tools := newFakeToolkit()
	tools.isec[isecOnlyFirst] = []string{vcfLine("1", 100, ".", "A", "T")}
	tools.isec[isecOnlySecond] = []string{vcfLine("2", 200, ".", "C", "G")}

	x := NewIntersection(tools, AssumeYes(),
		preparedInput(t, dir, "a.vcf.gz"),
		preparedInput(t, dir, "b.vcf.gz"),
		filepath.Join(dir, "output"))
	res, err := x.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.OnlyFirst, 1)
	assert.Len(t, res.OnlySecond, 1)
	assert.Empty(t, res.Intersection)
	assert.FileExists(t, res.Files.Intersection)
}

func TestIntersectionSubsetCountMismatch(t *testing.T) {
	dir := t.TempDir()
	tools := newFakeToolkit()
	tools.isec[isecSharedFirst] = []string{
		vcfLine("1", 100, ".", "A", "T"),
		vcfLine("1", 200, ".", "C", "G"),
	}
	tools.isec[isecSharedSecond] = []string{
		vcfLine("1", 100, ".", "A", "T"),
	}

	x := NewIntersection(tools, AssumeYes(),
		preparedInput(t, dir, "a.vcf.gz"),
		preparedInput(t, dir, "b.vcf.gz"),
		filepath.Join(dir, "output"))
	_, err := x.Run(context.Background())

	var ie *IntersectError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "merge", ie.Op)
	// The merge never started.
	assert.Equal(t, []string{"isec"}, tools.calls)
}

func TestIntersectionToolkitFailure(t *testing.T) {
	dir := t.TempDir()
	tools := newFakeToolkit()
	tools.fail["isec"] = errors.New("exit status 255")

	x := NewIntersection(tools, AssumeYes(),
		preparedInput(t, dir, "a.vcf.gz"),
		preparedInput(t, dir, "b.vcf.gz"),
		filepath.Join(dir, "output"))
	_, err := x.Run(context.Background())

	var ie *IntersectError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "isec", ie.Op)
}

func TestIntersectionDeclinedReplace(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "output")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	sentinel := filepath.Join(outDir, "keep.txt")
	require.NoError(t, os.WriteFile(sentinel, []byte("precious"), 0o644))

	tools := newFakeToolkit()
	x := NewIntersection(tools, Static{Replace: false},
		preparedInput(t, dir, "a.vcf.gz"),
		preparedInput(t, dir, "b.vcf.gz"),
		outDir)
	_, err := x.Run(context.Background())

	assert.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, tools.calls)
	assert.FileExists(t, sentinel)
}

func TestIntersectionOutDirIsFile(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(outDir, []byte("not a directory"), 0o644))

	x := NewIntersection(newFakeToolkit(), AssumeYes(),
		preparedInput(t, dir, "a.vcf.gz"),
		preparedInput(t, dir, "b.vcf.gz"),
		outDir)
	_, err := x.Run(context.Background())

	var ffe *FileFormatError
	require.ErrorAs(t, err, &ffe)
	assert.Equal(t, outDir, ffe.Path)
}

func TestIntersectionKeepsExplicitWorkDir(t *testing.T) {
	dir := t.TempDir()
	workDir := filepath.Join(dir, "isec")

	tools := newFakeToolkit()
	shared := []string{vcfLine("1", 100, ".", "A", "T")}
	tools.isec[isecSharedFirst] = shared
	tools.isec[isecSharedSecond] = shared

	x := NewIntersection(tools, AssumeYes(),
		preparedInput(t, dir, "a.vcf.gz"),
		preparedInput(t, dir, "b.vcf.gz"),
		filepath.Join(dir, "output"))
	x.SetWorkDir(workDir)

	_, err := x.Run(context.Background())
	require.NoError(t, err)

	// The raw numbered outputs stay around for inspection.
	assert.Equal(t, workDir, tools.isecDir)
	assert.FileExists(t, filepath.Join(workDir, isecOnlyFirst))
	assert.FileExists(t, filepath.Join(workDir, isecSharedSecond))
}

func TestComplementName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/sample.vcf.gz", "sample_setdiff.vcf"},
		{"staging/cmp-test-a.vcf.gz", "cmp-test-a_setdiff.vcf"},
		{"plain.vcf", "plain_setdiff.vcf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, complementName(tt.path))
	}
}

// The tests below drive the real toolkit end to end and are skipped
// when it is not installed.

func bcftoolsOrSkip(t *testing.T) *bcftools.Tools {
	t.Helper()
	if _, err := exec.LookPath("bcftools"); err != nil {
		t.Skip("bcftools not installed")
	}
	return bcftools.New("")
}

func copyTestFile(t *testing.T, name, dst string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0o644))
}

func runComparison(t *testing.T, dir, first, second string) *Result {
	t.Helper()
	ctx := context.Background()
	tools := bcftoolsOrSkip(t)

	prep := NewPreparer(tools, AssumeYes(), filepath.Join(dir, "staging"))
	a, err := prep.Prepare(ctx, first)
	require.NoError(t, err)
	b, err := prep.Prepare(ctx, second)
	require.NoError(t, err)

	x := NewIntersection(tools, AssumeYes(), a, b, filepath.Join(dir, "output"))
	res, err := x.Run(ctx)
	require.NoError(t, err)
	return res
}

func TestEndToEndComparison(t *testing.T) {
	bcftoolsOrSkip(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "cmp-test-a.vcf")
	b := filepath.Join(dir, "cmp-test-b.vcf")
	copyTestFile(t, "cmp-test-a.vcf", a)
	copyTestFile(t, "cmp-test-b.vcf", b)

	res := runComparison(t, dir, a, b)

	assert.Len(t, res.Intersection, 5)
	assert.Len(t, res.OnlyFirst, 1)
	assert.Len(t, res.OnlySecond, 1)
	assert.Equal(t, "rs62635286", res.OnlyFirst[0].ID)
	assert.Equal(t, "rs5839461", res.OnlySecond[0].ID)
}

func TestEndToEndIdenticalFiles(t *testing.T) {
	bcftoolsOrSkip(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "left.vcf")
	b := filepath.Join(dir, "right.vcf")
	copyTestFile(t, "sample.vcf", a)
	copyTestFile(t, "sample.vcf", b)

	res := runComparison(t, dir, a, b)

	assert.Len(t, res.Intersection, 30)
	assert.Empty(t, res.OnlyFirst)
	assert.Empty(t, res.OnlySecond)
}

func TestEndToEndDisjointFiles(t *testing.T) {
	bcftoolsOrSkip(t)
	dir := t.TempDir()

	header, records := readSampleLines(t)
	a := filepath.Join(dir, "head.vcf")
	b := filepath.Join(dir, "tail.vcf")
	writeLines(t, a, header, records[:15])
	writeLines(t, b, header, records[15:])

	res := runComparison(t, dir, a, b)

	assert.Empty(t, res.Intersection)
	assert.Len(t, res.OnlyFirst, 15)
	assert.Len(t, res.OnlySecond, 15)
}

// Randomly split a sample file into two overlapping subsets and check
// the comparison recovers the exact split.
func TestEndToEndRandomSplit(t *testing.T) {
	bcftoolsOrSkip(t)
	dir := t.TempDir()

	header, records := readSampleLines(t)
	rng := rand.New(rand.NewSource(11))
	var both, onlyA, onlyB []string
	var linesA, linesB []string
	for _, rec := range records {
		switch rng.Intn(3) {
		case 0:
			both = append(both, rec)
			linesA = append(linesA, rec)
			linesB = append(linesB, rec)
		case 1:
			onlyA = append(onlyA, rec)
			linesA = append(linesA, rec)
		case 2:
			onlyB = append(onlyB, rec)
			linesB = append(linesB, rec)
		}
	}

	a := filepath.Join(dir, "split-a.vcf")
	b := filepath.Join(dir, "split-b.vcf")
	writeLines(t, a, header, linesA)
	writeLines(t, b, header, linesB)

	res := runComparison(t, dir, a, b)

	assert.Len(t, res.Intersection, len(both))
	assert.Len(t, res.OnlyFirst, len(onlyA))
	assert.Len(t, res.OnlySecond, len(onlyB))
}

// readSampleLines splits testdata/sample.vcf into header and record
// lines.
func readSampleLines(t *testing.T) (header, records []string) {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", "sample.vcf"))
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			header = append(header, line)
		} else {
			records = append(records, line)
		}
	}
	require.NotEmpty(t, records)
	return header, records
}

func writeLines(t *testing.T, path string, header, records []string) {
	t.Helper()
	lines := append(append([]string{}, header...), records...)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}
