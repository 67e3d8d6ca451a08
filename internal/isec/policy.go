package isec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Artifact identifies the kind of staged file a decision is about.
type Artifact int

const (
	ArtifactCompressedVCF Artifact = iota
	ArtifactIndex
)

func (a Artifact) String() string {
	switch a {
	case ArtifactCompressedVCF:
		return "BGZipped VCF"
	case ArtifactIndex:
		return "index"
	default:
		return "artifact"
	}
}

// Decision resolves what to do about a staging artifact that already
// exists on disk.
type Decision int

const (
	// Reuse keeps the existing artifact as-is.
	Reuse Decision = iota
	// Overwrite rebuilds the artifact in place.
	Overwrite
	// Relocate builds a fresh artifact under the staging prefix and
	// leaves the existing one untouched.
	Relocate
)

// Policy supplies the reuse/overwrite/relocate decisions the staging
// and set-operation steps need when they encounter existing files.
// Interactive runs ask the user; --yes runs and tests inject fixed
// answers.
type Policy interface {
	// ResolveExisting decides what to do with a usable artifact already
	// present at path.
	ResolveExisting(kind Artifact, path string) (Decision, error)

	// ApproveCreate reports whether a new artifact may be written at
	// path. A negative answer relocates it under the staging prefix.
	ApproveCreate(kind Artifact, path string) (bool, error)

	// ApproveReplace reports whether the existing file tree at path may
	// be removed and rebuilt.
	ApproveReplace(path string) (bool, error)
}

// Static is a Policy with fixed answers. The zero value reuses existing
// artifacts, declines writes next to the inputs, and refuses to replace
// anything.
type Static struct {
	Existing Decision
	Create   bool
	Replace  bool
}

func (s Static) ResolveExisting(kind Artifact, path string) (Decision, error) {
	return s.Existing, nil
}

func (s Static) ApproveCreate(kind Artifact, path string) (bool, error) {
	return s.Create, nil
}

func (s Static) ApproveReplace(path string) (bool, error) {
	return s.Replace, nil
}

// AssumeYes returns the policy used by non-interactive runs: existing
// artifacts are reused and every write is approved.
func AssumeYes() Static {
	return Static{Existing: Reuse, Create: true, Replace: true}
}

// Prompt is a Policy that asks y/n questions on a terminal. Answers are
// read line by line; an empty line picks the default shown in the
// bracket suffix.
type Prompt struct {
	In  io.Reader
	Out io.Writer

	br *bufio.Reader
}

// NewPrompt returns a Prompt wired to stdin and stderr, keeping stdout
// clean for the result summary.
func NewPrompt() *Prompt {
	return &Prompt{In: os.Stdin, Out: os.Stderr}
}

func (p *Prompt) ResolveExisting(kind Artifact, path string) (Decision, error) {
	use, err := p.confirm(fmt.Sprintf("%s found at %s. Use it?", kind, path), false)
	if err != nil {
		return 0, err
	}
	if use {
		return Reuse, nil
	}
	over, err := p.confirm(fmt.Sprintf("Overwrite %s?", path), false)
	if err != nil {
		return 0, err
	}
	if over {
		return Overwrite, nil
	}
	return Relocate, nil
}

func (p *Prompt) ApproveCreate(kind Artifact, path string) (bool, error) {
	return p.confirm(fmt.Sprintf("Create %s at %s?", kind, path), false)
}

func (p *Prompt) ApproveReplace(path string) (bool, error) {
	return p.confirm(fmt.Sprintf("%s will be overwritten. Continue?", path), true)
}

func (p *Prompt) confirm(question string, def bool) (bool, error) {
	if p.br == nil {
		p.br = bufio.NewReader(p.In)
	}
	suffix := "[y/N]"
	if def {
		suffix = "[Y/n]"
	}
	for {
		fmt.Fprintf(p.Out, "%s %s: ", question, suffix)
		line, err := p.br.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.Out, "Please answer y or n.")
		if err != nil {
			return false, fmt.Errorf("read confirmation: %w", err)
		}
	}
}
