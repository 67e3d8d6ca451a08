package isec

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// PreparedFile is a variant file staged for the set operation: a
// BGZF-compressed VCF with a tabix index next to it.
type PreparedFile struct {
	Source     string // path the user supplied
	Path       string // compressed VCF handed to the toolkit
	Index      string // index beside Path
	FreshGz    bool   // compressed file was written by this run
	FreshIndex bool   // index was written by this run
}

// Preparer stages input files. Existing artifacts are reused,
// overwritten, or rebuilt under the staging prefix according to the
// injected policy.
type Preparer struct {
	tools  Toolkit
	policy Policy
	prefix string
	logger *zap.Logger
}

// NewPreparer returns a Preparer that stages relocated artifacts under
// prefix.
func NewPreparer(tools Toolkit, policy Policy, prefix string) *Preparer {
	return &Preparer{
		tools:  tools,
		policy: policy,
		prefix: prefix,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger used by the Preparer.
func (p *Preparer) SetLogger(logger *zap.Logger) {
	p.logger = logger
}

// Prepare stages the variant file at path. Plain .vcf files are
// sort-compressed first; .vcf.gz files are used as-is. Anything else is
// a FileFormatError.
func (p *Preparer) Prepare(ctx context.Context, path string) (*PreparedFile, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	prepared := &PreparedFile{Source: path}
	switch {
	case strings.HasSuffix(path, ".vcf.gz"):
		prepared.Path = path
	case strings.HasSuffix(path, ".vcf"):
		gz, fresh, err := p.compress(ctx, path)
		if err != nil {
			return nil, err
		}
		prepared.Path = gz
		prepared.FreshGz = fresh
	default:
		return nil, &FileFormatError{Path: path}
	}

	if err := p.index(ctx, prepared); err != nil {
		return nil, err
	}
	return prepared, nil
}

// compress sort-compresses path into a .vcf.gz. The target is the
// sibling path unless the policy reuses an existing file there or
// redirects the write into the staging prefix.
func (p *Preparer) compress(ctx context.Context, path string) (string, bool, error) {
	sibling := path + ".gz"
	target := sibling

	if _, err := os.Stat(sibling); err == nil {
		decision, err := p.policy.ResolveExisting(ArtifactCompressedVCF, sibling)
		if err != nil {
			return "", false, err
		}
		switch decision {
		case Reuse:
			p.logger.Info("reusing compressed VCF", zap.String("path", sibling))
			return sibling, false, nil
		case Overwrite:
			target = sibling
		case Relocate:
			target = p.staged(filepath.Base(sibling))
		}
	} else {
		ok, err := p.policy.ApproveCreate(ArtifactCompressedVCF, sibling)
		if err != nil {
			return "", false, err
		}
		if !ok {
			target = p.staged(filepath.Base(sibling))
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", false, err
	}
	p.logger.Info("compressing VCF",
		zap.String("source", path),
		zap.String("target", target))
	if err := p.tools.Sort(ctx, path, target); err != nil {
		return "", false, &IntersectError{Op: "sort", Err: err}
	}
	return target, true, nil
}

// index ensures prepared.Path has a tabix index in the same directory,
// relocating both files into the staging prefix when the policy keeps
// the input directory untouched. An index older than a freshly written
// compressed file is never reused.
func (p *Preparer) index(ctx context.Context, prepared *PreparedFile) error {
	idx := prepared.Path + ".tbi"

	if p.prefix != "" && filepath.Dir(prepared.Path) == filepath.Clean(p.prefix) {
		return p.writeIndex(ctx, prepared, idx)
	}

	if _, err := os.Stat(idx); err == nil {
		if prepared.FreshGz {
			// The compressed file was just rebuilt, so the index on
			// disk no longer matches it.
			ok, err := p.policy.ApproveReplace(idx)
			if err != nil {
				return err
			}
			if !ok {
				if err := p.relocate(prepared); err != nil {
					return err
				}
				idx = prepared.Path + ".tbi"
			}
			return p.writeIndex(ctx, prepared, idx)
		}

		decision, err := p.policy.ResolveExisting(ArtifactIndex, idx)
		if err != nil {
			return err
		}
		switch decision {
		case Reuse:
			p.logger.Info("reusing index", zap.String("path", idx))
			prepared.Index = idx
			return nil
		case Overwrite:
		case Relocate:
			if err := p.relocate(prepared); err != nil {
				return err
			}
			idx = prepared.Path + ".tbi"
		}
		return p.writeIndex(ctx, prepared, idx)
	}

	ok, err := p.policy.ApproveCreate(ArtifactIndex, idx)
	if err != nil {
		return err
	}
	if !ok {
		if err := p.relocate(prepared); err != nil {
			return err
		}
		idx = prepared.Path + ".tbi"
	}
	return p.writeIndex(ctx, prepared, idx)
}

func (p *Preparer) writeIndex(ctx context.Context, prepared *PreparedFile, idx string) error {
	if err := os.MkdirAll(filepath.Dir(idx), 0o755); err != nil {
		return err
	}
	p.logger.Info("indexing VCF",
		zap.String("path", prepared.Path),
		zap.String("index", idx))
	if err := p.tools.Index(ctx, prepared.Path, idx); err != nil {
		return &IntersectError{Op: "index", Err: err}
	}
	prepared.Index = idx
	prepared.FreshIndex = true
	return nil
}

// relocate copies the compressed file into the staging prefix so the
// toolkit finds the index adjacent to it.
func (p *Preparer) relocate(prepared *PreparedFile) error {
	if p.prefix == "" {
		return fmt.Errorf("no staging prefix to relocate %s into", prepared.Path)
	}
	target := p.staged(filepath.Base(prepared.Path))
	if target == prepared.Path {
		return nil
	}
	if err := os.MkdirAll(p.prefix, 0o755); err != nil {
		return err
	}
	p.logger.Info("staging compressed VCF",
		zap.String("source", prepared.Path),
		zap.String("target", target))
	if err := copyFile(prepared.Path, target); err != nil {
		return err
	}
	prepared.Path = target
	return nil
}

func (p *Preparer) staged(name string) string {
	return filepath.Join(p.prefix, name)
}

// copyFile copies src to dst via a temporary file in dst's directory so
// a partial copy never lands at the final path.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
