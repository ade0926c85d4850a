package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/app"
	"github.com/JakeFAU/review-catalog/internal/site"
)

// newBuildCmd creates the 'build' subcommand, which compiles the site.
func newBuildCmd() *cobra.Command {
	var (
		asJSON bool
		opts   app.BuildOptions
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compiles the record bundle into the static site",
		Long: `Loads the record bundle, plans every listing, detail and facet page,
compiles the search shards and writes the complete artifact tree. The output
directory is only replaced once planning has succeeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Build(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			appInstance.Logger().Info("Build command finished.",
				zap.String("build_id", report.BuildID),
				zap.Duration("duration", report.Duration),
			)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), buildSummary(report))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the build report as JSON")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "render everything in memory without writing or publishing")
	return cmd
}

func buildSummary(r site.Report) string {
	baseURL := r.BaseURL
	if baseURL == "" {
		baseURL = "(none)"
	}
	feed := "skipped"
	if r.Feed {
		feed = "written"
	}
	rows := [][]string{
		{"Records", strconv.Itoa(r.Records)},
		{"Dropped", strconv.Itoa(r.Dropped)},
		{"Pages", strconv.Itoa(r.Pages)},
		{"Redirects", strconv.Itoa(r.Redirects)},
		{"Search shards", strconv.Itoa(r.Shards)},
		{"Assets", strconv.Itoa(r.Assets)},
		{"Base URL", baseURL},
		{"Feed", feed},
	}
	return renderTable([]string{"Build " + r.BuildID, ""}, rows, []columnAlignment{alignLeft, alignRight})
}
