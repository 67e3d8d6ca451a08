package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vcf-isec/internal/isec"
	"github.com/inodb/vcf-isec/internal/vcf"
)

// Subset labels for stored variants.
const (
	SubsetIntersection = "intersection"
	SubsetOnlyFirst    = "first_only"
	SubsetOnlySecond   = "second_only"
)

// FileFingerprint holds stat-based identity for a comparison input.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Comparison is one recorded run: which files were compared, when, and
// how the records split between the three subsets.
type Comparison struct {
	ID         int64
	CreatedAt  time.Time
	First      FileFingerprint
	Second     FileFingerprint
	OutputDir  string
	Shared     int64
	OnlyFirst  int64
	OnlySecond int64
}

// StoredVariant is one variant row of a recorded comparison.
type StoredVariant struct {
	ComparisonID int64
	Subset       string
	Variant      *vcf.Variant
}

// RecordComparison inserts one comparison row plus every variant of its
// three subsets, returning the new comparison id.
func (s *Store) RecordComparison(first, second FileFingerprint, outputDir string, res *isec.Result) (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT nextval('comparison_ids')").Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate comparison id: %w", err)
	}

	_, err := s.db.Exec(`INSERT INTO comparisons VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now(),
		first.Path, first.Size, first.ModTime,
		second.Path, second.Size, second.ModTime,
		outputDir,
		int64(len(res.Intersection)), int64(len(res.OnlyFirst)), int64(len(res.OnlySecond)))
	if err != nil {
		return 0, fmt.Errorf("insert comparison: %w", err)
	}

	if err := s.writeVariants(id, res); err != nil {
		return 0, err
	}
	return id, nil
}

// writeVariants batch-inserts the subsets using the Appender API.
func (s *Store) writeVariants(id int64, res *isec.Result) error {
	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "variants")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	subsets := []struct {
		name     string
		variants []*vcf.Variant
	}{
		{SubsetIntersection, res.Intersection},
		{SubsetOnlyFirst, res.OnlyFirst},
		{SubsetOnlySecond, res.OnlySecond},
	}
	for _, sub := range subsets {
		for _, v := range sub.variants {
			if err := appender.AppendRow(
				id, sub.name,
				v.Chrom, v.Pos, v.ID, v.Ref, strings.Join(v.Alts, ","),
				v.Qual, v.RLen, v.Filter,
			); err != nil {
				return fmt.Errorf("append variant: %w", err)
			}
		}
	}

	return appender.Flush()
}

// Comparisons lists every recorded comparison, oldest first.
func (s *Store) Comparisons() ([]Comparison, error) {
	rows, err := s.db.Query(`SELECT
		id, created_at,
		first_file, first_size, first_modified,
		second_file, second_size, second_modified,
		output_dir, shared, only_first, only_second
		FROM comparisons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []Comparison
	for rows.Next() {
		var c Comparison
		if err := rows.Scan(
			&c.ID, &c.CreatedAt,
			&c.First.Path, &c.First.Size, &c.First.ModTime,
			&c.Second.Path, &c.Second.Size, &c.Second.ModTime,
			&c.OutputDir, &c.Shared, &c.OnlyFirst, &c.OnlySecond,
		); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		comparisons = append(comparisons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}
	return comparisons, nil
}

// LatestComparison returns the most recent recorded comparison, or nil
// when the database is empty.
func (s *Store) LatestComparison() (*Comparison, error) {
	var c Comparison
	err := s.db.QueryRow(`SELECT
		id, created_at,
		first_file, first_size, first_modified,
		second_file, second_size, second_modified,
		output_dir, shared, only_first, only_second
		FROM comparisons ORDER BY id DESC LIMIT 1`).Scan(
		&c.ID, &c.CreatedAt,
		&c.First.Path, &c.First.Size, &c.First.ModTime,
		&c.Second.Path, &c.Second.Size, &c.Second.ModTime,
		&c.OutputDir, &c.Shared, &c.OnlyFirst, &c.OnlySecond,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest comparison: %w", err)
	}
	return &c, nil
}

// Variants returns stored variants of a comparison ordered by position.
// subset and chrom narrow the result when non-empty; limit caps it when
// positive.
func (s *Store) Variants(comparisonID int64, subset, chrom string, limit int) ([]StoredVariant, error) {
	q := `SELECT comparison_id, subset, chrom, pos, id, ref, alts, qual, rlen, filter
		FROM variants WHERE comparison_id=?`
	args := []any{comparisonID}
	if subset != "" {
		q += " AND subset=?"
		args = append(args, subset)
	}
	if chrom != "" {
		q += " AND chrom=?"
		args = append(args, chrom)
	}
	q += " ORDER BY chrom, pos"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var stored []StoredVariant
	for rows.Next() {
		var (
			sv   StoredVariant
			v    vcf.Variant
			alts string
		)
		if err := rows.Scan(
			&sv.ComparisonID, &sv.Subset,
			&v.Chrom, &v.Pos, &v.ID, &v.Ref, &alts,
			&v.Qual, &v.RLen, &v.Filter,
		); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if alts != "" {
			v.Alts = strings.Split(alts, ",")
		}
		v.Start = v.Pos - 1
		v.Stop = v.Start + v.RLen
		v.Alleles = append([]string{v.Ref}, v.Alts...)
		sv.Variant = &v
		stored = append(stored, sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return stored, nil
}
