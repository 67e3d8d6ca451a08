package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vcf-isec/internal/duckdb"
)

func newQueryCmd() *cobra.Command {
	var (
		dbPath string
		id     int64
		subset string
		chrom  string
		limit  int
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect recorded comparisons",
		Long: `Read comparisons recorded with --db. Without flags the variants of
the most recent comparison are printed.`,
		Example: `  vcf-isec query --db results.duckdb --list
  vcf-isec query --db results.duckdb --subset first_only
  vcf-isec query --db results.duckdb --id 3 --chrom 12 --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = viper.GetString("db")
			}
			return runQuery(dbPath, id, subset, chrom, limit, list)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "results database to read")
	cmd.Flags().Int64Var(&id, "id", 0, "comparison id (default: most recent)")
	cmd.Flags().StringVar(&subset, "subset", "", "only one subset: intersection, first_only, or second_only")
	cmd.Flags().StringVar(&chrom, "chrom", "", "only variants on this contig")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap the number of printed variants")
	cmd.Flags().BoolVar(&list, "list", false, "list recorded comparisons instead of variants")

	return cmd
}

func runQuery(dbPath string, id int64, subset, chrom string, limit int, list bool) error {
	if dbPath == "" {
		return fmt.Errorf("no results database given (use --db or set db in config)")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("results database not found: %s", dbPath)
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if list {
		return listComparisons(store)
	}

	cmp, err := pickComparison(store, id)
	if err != nil {
		return err
	}

	fmt.Printf("Comparison #%d (%s)\n", cmp.ID, cmp.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  %s vs %s\n", cmp.First.Path, cmp.Second.Path)
	fmt.Printf("  shared=%d first_only=%d second_only=%d\n\n", cmp.Shared, cmp.OnlyFirst, cmp.OnlySecond)

	variants, err := store.Variants(cmp.ID, subset, chrom, limit)
	if err != nil {
		return err
	}
	if len(variants) == 0 {
		fmt.Println("No variants match.")
		return nil
	}

	for _, sv := range variants {
		v := sv.Variant
		alts := strings.Join(v.Alts, ",")
		if alts == "" {
			alts = "."
		}
		fmt.Printf("%-13s %s\t%d\t%s\t%s\t%s\t%g\n",
			sv.Subset, v.Chrom, v.Pos, v.ID, v.Ref, alts, v.Qual)
	}
	return nil
}

func listComparisons(store *duckdb.Store) error {
	comparisons, err := store.Comparisons()
	if err != nil {
		return err
	}
	if len(comparisons) == 0 {
		fmt.Println("No comparisons recorded.")
		return nil
	}
	for _, c := range comparisons {
		fmt.Printf("#%d  %s  %s vs %s  shared=%d first_only=%d second_only=%d\n",
			c.ID, c.CreatedAt.Format(time.RFC3339),
			c.First.Path, c.Second.Path,
			c.Shared, c.OnlyFirst, c.OnlySecond)
	}
	return nil
}

func pickComparison(store *duckdb.Store, id int64) (*duckdb.Comparison, error) {
	if id == 0 {
		cmp, err := store.LatestComparison()
		if err != nil {
			return nil, err
		}
		if cmp == nil {
			return nil, fmt.Errorf("no comparisons recorded")
		}
		return cmp, nil
	}

	comparisons, err := store.Comparisons()
	if err != nil {
		return nil, err
	}
	for i := range comparisons {
		if comparisons[i].ID == id {
			return &comparisons[i], nil
		}
	}
	return nil, fmt.Errorf("comparison #%d not found", id)
}
