package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-catalog/internal/app"
)

// newScrubCmd creates the 'scrub' subcommand, which removes placeholder
// sample images from the record bundle.
func newScrubCmd() *cobra.Command {
	var opts app.ScrubOptions
	cmd := &cobra.Command{
		Use:   "scrub",
		Short: "Removes placeholder sample images from the record bundle",
		Long: `Checks every sample image URL against the learned placeholder
signatures, drops the matches and saves the bundle when anything changed.
The signature and verdict cache files are always rewritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.MaxCheck < 0 {
				return fmt.Errorf("--max-check must be >= 0")
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := appInstance.Scrub(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("scrub: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), scrubSummary(report))
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Learn, "learn", false, "learn signatures from known placeholder URLs and ignore cached verdicts")
	cmd.Flags().IntVar(&opts.MaxCheck, "max-check", 0, "only inspect the first N records (0 checks all)")
	return cmd
}

func scrubSummary(r app.ScrubReport) string {
	saved := "unchanged"
	if r.Saved {
		saved = "saved"
	}
	rows := [][]string{
		{"Checked", strconv.Itoa(r.Checked)},
		{"Changed", strconv.Itoa(r.Changed)},
		{"Removed", strconv.Itoa(r.Removed)},
		{"Learned", strconv.Itoa(r.Learned)},
		{"Signatures", strconv.Itoa(r.Signatures)},
		{"Cached URLs", strconv.Itoa(r.CachedURLs)},
		{"Bundle", saved},
	}
	return renderTable([]string{"Scrub", ""}, rows, []columnAlignment{alignLeft, alignRight})
}
