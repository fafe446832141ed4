package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the structure of every stored index",
		Long: "check opens the configured store, walks every index and verifies key order, " +
			"fill factors, page links and entry counts.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			m, err := openManager(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer m.Close()

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKEY TYPE\tUNIQUE\tENTRIES\tHEIGHT\tCAPACITY")
			for _, info := range m.Indexes() {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%d\n",
					info.Name, info.KeyType, info.Unique, info.Count, info.Height, info.Capacity)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if err := m.Check(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d indexes OK\n", m.IndexCount())
			if fs, ok := m.Store().(*storage.FileStore); ok {
				fmt.Fprintf(out, "page cache hit ratio: %.2f\n", fs.CacheHitRatio())
			}
			return nil
		},
	}
}
