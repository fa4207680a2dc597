package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"moviescout/internal/domain"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		title      string
		genre      string
		minRating  float64
		maxRuntime float64
		sortBy     string
		asJSON     bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "search TERM...",
		Short: "Search one or more terms and print the merged, filtered result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := domain.FilterCriteria{
				TitleSubstring: strings.TrimSpace(title),
				Genre:          strings.TrimSpace(genre),
			}
			if cmd.Flags().Changed("min-rating") {
				if err := checkBound("min-rating", minRating); err != nil {
					return err
				}
				criteria.MinRating = &minRating
			}
			if cmd.Flags().Changed("max-runtime") {
				if err := checkBound("max-runtime", maxRuntime); err != nil {
					return err
				}
				criteria.MaxRuntimeMinutes = &maxRuntime
			}

			searcher, err := ctx.catalog()
			if err != nil {
				return err
			}
			response, err := searcher.Search(cmd.Context(), domain.SearchRequest{
				Terms:    args,
				Criteria: criteria,
				SortKey:  domain.NormalizeSortKey(sortBy),
				NoCache:  noCache,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, response)
			}
			return renderSearchResponse(cmd.OutOrStdout(), response)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Keep titles containing this text (case-insensitive)")
	cmd.Flags().StringVar(&genre, "genre", "", "Keep records whose genre list contains this text (case-sensitive)")
	cmd.Flags().Float64Var(&minRating, "min-rating", 0, "Minimum rating; unrated titles count as 0")
	cmd.Flags().Float64Var(&maxRuntime, "max-runtime", 0, "Maximum runtime in minutes; titles without a runtime always pass")
	cmd.Flags().StringVar(&sortBy, "sort", "none", "Sort order: none, rating, year")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw response as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass cached provider lookups")
	return cmd
}

// checkBound rejects values no record could be compared against.
func checkBound(flag string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("--%s must be a finite number", flag)
	}
	if value < 0 {
		return fmt.Errorf("--%s must not be negative", flag)
	}
	return nil
}

func renderSearchResponse(out io.Writer, response domain.SearchResponse) error {
	run := response.Run
	if run.Empty {
		_, err := fmt.Fprintf(out, "No results (%s).\n", emptyReasonText(run.EmptyReason))
		printFailedTerms(out, run)
		return err
	}

	view := response.View
	if len(view.Items) == 0 {
		fmt.Fprintf(out, "%d records resolved, none matched the filters.\n", run.Resolved)
	} else {
		rows := make([][]string, 0, len(view.Items))
		for _, item := range view.Items {
			rows = append(rows, []string{
				item.ID,
				item.Title,
				orDash(item.Year),
				orDash(item.Rating),
				orDash(item.Runtime),
				orDash(item.Genre),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"ID", "Title", "Year", "Rating", "Runtime", "Genre"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
	}

	stats := view.Stats
	average := "n/a"
	if stats.AverageRating != nil {
		average = strconv.FormatFloat(*stats.AverageRating, 'f', 2, 64)
	}
	fmt.Fprintf(out, "Count: %d  Average rating: %s\n", stats.Count, average)

	if genres := stats.Genres(); len(genres) > 0 {
		rows := make([][]string, 0, len(genres))
		for _, g := range genres {
			rows = append(rows, []string{g.Genre, strconv.Itoa(g.Count)})
		}
		fmt.Fprintln(out, renderTable([]string{"Genre", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	printFailedTerms(out, run)
	return nil
}

func printFailedTerms(out io.Writer, run domain.RunSummary) {
	for _, status := range run.Searches {
		if !status.OK {
			fmt.Fprintf(out, "warning: search %q failed: %s\n", status.Key, status.Error)
		}
	}
	if len(run.Failed) > 0 {
		fmt.Fprintf(out, "warning: %d detail lookups were skipped\n", len(run.Failed))
	}
}

func emptyReasonText(reason domain.EmptyReason) string {
	switch reason {
	case domain.EmptyReasonNoHits:
		return "no search hits"
	case domain.EmptyReasonNoDetails:
		return "no detail records could be resolved"
	default:
		return "empty"
	}
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
