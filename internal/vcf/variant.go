// Package vcf provides VCF file parsing functionality.
package vcf

// Variant represents a single genomic variant record from a VCF file.
// Records are plain data: created during parsing, never mutated afterwards.
type Variant struct {
	Chrom   string                 // Contig name (e.g., "12", "chr12")
	Pos     int64                  // 1-based genomic position
	Start   int64                  // 0-based start (Pos - 1)
	Stop    int64                  // 0-based exclusive end; honors INFO END when present
	RLen    int64                  // Length of the record on the reference (Stop - Start)
	ID      string                 // Variant identifier ("." when absent)
	Ref     string                 // Reference allele
	Alts    []string               // Alternate alleles
	Alleles []string               // Ref followed by Alts
	Qual    float64                // Quality score; 0 when the column is "."
	Filter  string                 // Filter status (PASS or filter name)
	Info    map[string]interface{} // INFO field key-value pairs
}

// IsSNV returns true if the variant is a single nucleotide variant,
// i.e. the reference and every alternate allele are one base long.
func (v *Variant) IsSNV() bool {
	if len(v.Ref) != 1 || len(v.Alts) == 0 {
		return false
	}
	for _, alt := range v.Alts {
		if len(alt) != 1 {
			return false
		}
	}
	return true
}

// IsMultiallelic returns true if the record declares more than one
// alternate allele.
func (v *Variant) IsMultiallelic() bool {
	return len(v.Alts) > 1
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}
