package isec

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inodb/vcf-isec/internal/bcftools"
)

var _ Toolkit = (*bcftools.Tools)(nil)

const testHeader = "##fileformat=VCFv4.2\n" +
	"##contig=<ID=1>\n" +
	"##contig=<ID=2>\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"

// vcfLine renders one minimal data line.
func vcfLine(chrom string, pos int, id, ref, alt string) string {
	return fmt.Sprintf("%s\t%d\t%s\t%s\t%s\t50\tPASS\tDP=10", chrom, pos, id, ref, alt)
}

func renderVCF(records []string) []byte {
	body := testHeader
	if len(records) > 0 {
		body += "\n" + strings.Join(records, "\n")
	}
	return []byte(body + "\n")
}

func writeVCFFile(path string, records []string) error {
	return os.WriteFile(path, renderVCF(records), 0o644)
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func gunzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// fakeToolkit implements Toolkit in-process, fabricating the files each
// operation would write so pipeline logic runs without the real binary.
type fakeToolkit struct {
	calls   []string            // operations in invocation order
	isec    map[string][]string // numbered output name -> record lines
	isecDir string              // directory the set operation ran in
	fail    map[string]error    // operation name -> injected failure
}

func newFakeToolkit() *fakeToolkit {
	return &fakeToolkit{
		isec: map[string][]string{},
		fail: map[string]error{},
	}
}

func (f *fakeToolkit) record(op string) error {
	f.calls = append(f.calls, op)
	return f.fail[op]
}

func (f *fakeToolkit) Sort(ctx context.Context, in, out string) error {
	if err := f.record("sort"); err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return writeGzip(out, data)
}

func (f *fakeToolkit) Index(ctx context.Context, gz, idx string) error {
	if err := f.record("index"); err != nil {
		return err
	}
	return os.WriteFile(idx, []byte("TBI\x01"), 0o644)
}

func (f *fakeToolkit) Isec(ctx context.Context, first, second, dir string) error {
	if err := f.record("isec"); err != nil {
		return err
	}
	f.isecDir = dir
	for _, name := range []string{isecOnlyFirst, isecOnlySecond, isecSharedFirst, isecSharedSecond} {
		if err := writeVCFFile(filepath.Join(dir, name), f.isec[name]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeToolkit) ViewCompress(ctx context.Context, in, out string) error {
	if err := f.record("view"); err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if err := writeGzip(out, data); err != nil {
		return err
	}
	return os.WriteFile(out+".csi", []byte("CSI\x01"), 0o644)
}

func (f *fakeToolkit) Merge(ctx context.Context, out string, ins ...string) error {
	if err := f.record("merge"); err != nil {
		return err
	}
	data, err := gunzip(ins[0])
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
