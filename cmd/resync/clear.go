package main

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/resyncdb/resync/store"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear <table>",
	Short: "Remove every record from a table",
	Long:  "Delete all records from the named table in the local store. The table schema is kept.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tableName := args[0]

		st := store.New(storePath)
		if err := st.Open(); err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		tbl, err := st.Table(tableName)
		if err != nil {
			return err
		}

		count, err := tbl.Count(context.Background())
		if err != nil {
			return err
		}

		if !clearYes {
			confirmed := false
			prompt := &survey.Confirm{
				Message: fmt.Sprintf("Delete %d record(s) from %q?", count, tableName),
			}
			if err := survey.AskOne(prompt, &confirmed); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := tbl.Clear(context.Background()); err != nil {
			return err
		}

		color.Green("✓ Cleared %s (%d record(s) removed)", tableName, count)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
}
