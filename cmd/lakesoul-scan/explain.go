package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugr-lab/lakesoul-go/filter"
	"github.com/hugr-lab/lakesoul-go/reader"
)

func newExplainCmd(root *rootOptions) *cobra.Command {
	var (
		config  string
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the compiled filter of a scan configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadScanConfig(root, config, filters, 0, 0)
			if err != nil {
				return err
			}
			// New compiles the filters without touching the files.
			r, err := reader.New(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			expr := r.Filter()
			if expr == nil {
				fmt.Fprintln(out, "filter: none")
				return nil
			}
			fmt.Fprintf(out, "filter: %s\n", expr)
			fmt.Fprintf(out, "sql: %s\n", filter.NewDuckDBEncoder(nil).Encode(expr))
			return nil
		},
	}
	cmd.Flags().StringVarP(&config, "config", "c", "", "scan configuration file")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "additional predicate (repeatable)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
