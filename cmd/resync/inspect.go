package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/resyncdb/resync/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List tables and record counts in the local store",
	Long:  "Open the local store and print each table, its key schema, and how many records it holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := store.New(storePath)
		if err := st.Open(); err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		names := st.TableNames()
		sort.Strings(names)

		bold := color.New(color.Bold)
		bold.Printf("%s (schema version %d)\n", storePath, st.Version())

		if len(names) == 0 {
			fmt.Println("  no tables")
			return nil
		}

		ctx := context.Background()
		for _, name := range names {
			tbl, err := st.Table(name)
			if err != nil {
				return err
			}
			count, err := tbl.Count(ctx)
			if err != nil {
				return err
			}
			keyDesc := strings.Join(tbl.KeyFields(), "+")
			fmt.Printf("  %s  %s  %s\n",
				color.CyanString("%-20s", name),
				color.YellowString("[%s]", keyDesc),
				fmt.Sprintf("%d record(s)", count))
		}
		return nil
	},
}
