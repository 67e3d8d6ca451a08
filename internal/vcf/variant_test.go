package vcf

import "testing"

func TestVariant_IsSNV(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		alts []string
		want bool
	}{
		{"snv", "A", []string{"G"}, true},
		{"multiallelic snv", "A", []string{"G", "T"}, true},
		{"insertion", "A", []string{"AC"}, false},
		{"deletion", "AC", []string{"A"}, false},
		{"mixed", "A", []string{"G", "AC"}, false},
		{"no alts", "A", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Chrom: "1", Pos: 100, Ref: tt.ref, Alts: tt.alts}
			if got := v.IsSNV(); got != tt.want {
				t.Errorf("IsSNV() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVariant_IsMultiallelic(t *testing.T) {
	v := &Variant{Ref: "A", Alts: []string{"G"}}
	if v.IsMultiallelic() {
		t.Error("single-alt variant reported as multiallelic")
	}
	v.Alts = []string{"G", "T"}
	if !v.IsMultiallelic() {
		t.Error("two-alt variant not reported as multiallelic")
	}
}

func TestVariant_NormalizeChrom(t *testing.T) {
	tests := []struct {
		chrom string
		want  string
	}{
		{"chr12", "12"},
		{"12", "12"},
		{"chrX", "X"},
		{"chr", "chr"},
		{"MT", "MT"},
	}

	for _, tt := range tests {
		v := &Variant{Chrom: tt.chrom}
		if got := v.NormalizeChrom(); got != tt.want {
			t.Errorf("NormalizeChrom(%q) = %q, want %q", tt.chrom, got, tt.want)
		}
	}
}
