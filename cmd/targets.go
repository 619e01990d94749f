package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/citewatch/internal/domain"
	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/store"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage tracked target domains",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List target domains",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		targets, err := st.ListTargets(ctx, false)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			fmt.Fprintln(os.Stderr, "No targets found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDOMAIN\tCOMPANY\tACTIVE")
		for _, t := range targets {
			company := t.Company
			if company == "" {
				company = "-"
			}
			active := "yes"
			if !t.Active {
				active = "no"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Domain, company, active)
		}
		return w.Flush()
	},
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Add a target domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		normalized := domain.Normalize(args[0])
		if normalized == "" {
			return eris.Errorf("invalid domain: %s", args[0])
		}
		company, _ := cmd.Flags().GetString("company")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.EnsureTarget(ctx, normalized, company); err != nil {
			return err
		}
		fmt.Printf("Added target: %s\n", normalized)
		return nil
	},
}

var targetsImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Bulk import target domains from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		targets, err := registry.LoadTargetsXLSX(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Postgres gets a single staged COPY; sqlite falls back to
		// row-at-a-time upserts.
		if pg, ok := st.(*store.PostgresStore); ok {
			rows := make([]model.Target, len(targets))
			for i, t := range targets {
				rows[i] = model.Target{Domain: t.Domain, Company: t.Company}
			}
			if _, err := pg.ImportTargets(ctx, rows); err != nil {
				return err
			}
		} else {
			for _, t := range targets {
				if _, err := st.EnsureTarget(ctx, t.Domain, t.Company); err != nil {
					return err
				}
			}
		}
		fmt.Printf("Imported %d targets from %s\n", len(targets), args[0])
		return nil
	},
}

func init() {
	targetsAddCmd.Flags().String("company", "", "company name")

	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsImportCmd)
	rootCmd.AddCommand(targetsCmd)
}
