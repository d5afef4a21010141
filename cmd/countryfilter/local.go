package main

import (
	"fmt"
	"strings"

	"countryfilter/internal/classifier"
	"countryfilter/internal/engine"
	"countryfilter/internal/settings"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Install default settings and zero counters if absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.cfg.OpenStore()
			if err != nil {
				return err
			}
			defer closeQuietly(store)

			wrote, err := settings.New(store, engine.DefaultOrigin).Bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wrote {
				fmt.Fprintln(out, "Defaults installed at:", a.cfg.DBPath)
			} else {
				fmt.Fprintln(out, "Already initialized:", a.cfg.DBPath)
			}
			return nil
		},
	}
}

func newCountriesCmd() *cobra.Command {
	var canonical bool

	cmd := &cobra.Command{
		Use:   "countries [QUERY]",
		Short: "List the selectable countries",
		Long: `List the countries that can be blocked, optionally narrowed by a
case-insensitive substring. --detectable restricts the list to the
countries the location classifier can recognize.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			names := classifier.SearchCatalog(query)
			if canonical {
				kept := names[:0]
				for _, n := range names {
					if classifier.IsCanonical(n) {
						kept = append(kept, n)
					}
				}
				names = kept
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), subtle.Render("No countries match "+strings.TrimSpace(query)))
				return
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}
	cmd.Flags().BoolVar(&canonical, "detectable", false, "only countries the classifier can detect")
	return cmd
}
