package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/viewavocats/estimia/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the service catalog with base prices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		domain, _ := cmd.Flags().GetString("domain")
		if domain != "" {
			if _, ok := cat.Domain(domain); !ok {
				return eris.Errorf("catalog: unknown domain %q", domain)
			}
		}

		formatCatalog(os.Stdout, cat, domain)
		return nil
	},
}

func formatCatalog(out io.Writer, cat *catalog.Catalog, domain string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tSERVICE\tLABEL\tPRICE (EUR HT)")
	for _, d := range cat.Domains() {
		if domain != "" && d.ID != domain {
			continue
		}
		for _, s := range d.Services {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.ID, s.ID, s.Label, s.BasePrice)
		}
	}
	w.Flush() //nolint:errcheck
}

func init() {
	catalogCmd.Flags().String("domain", "", "only list services of this domain")
	rootCmd.AddCommand(catalogCmd)
}
