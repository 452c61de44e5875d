package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword]",
	Short: "Search a supplier by catalogue code, CAS number or name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().String("brand", "", "Supplier: daejung or duksan (default from DEFAULT_BRAND)")
	searchCmd.Flags().Bool("first-only", false, "Return only the first matching row")
	searchCmd.Flags().Bool("labels", true, "Fetch regulatory labels where the supplier has them")
	searchCmd.Flags().String("format", "json", "Output format: json, table")
	searchCmd.Flags().Bool("fail-empty", false, "Exit non-zero when nothing matches")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) (err error) {
	brand, _ := cmd.Flags().GetString("brand")
	firstOnly, _ := cmd.Flags().GetBool("first-only")
	labels, _ := cmd.Flags().GetBool("labels")
	format, _ := cmd.Flags().GetString("format")
	failEmpty, _ := cmd.Flags().GetBool("fail-empty")

	a, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res, err := a.Service.Search(cmd.Context(), brand, supplier.Query{
		Text:          args[0],
		FirstOnly:     firstOnly,
		IncludeLabels: labels,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch format {
	case "table":
		printRecords(os.Stdout, res.Items)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}

	if failEmpty && len(res.Items) == 0 {
		return fmt.Errorf("%q: %w", res.Query, supplier.ErrNoResults)
	}
	return nil
}
