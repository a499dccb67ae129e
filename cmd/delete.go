package cmd

import (
	"fmt"
	"strconv"

	"github.com/ArtsyMacaw/kaprica/pkg/errors"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one entry from the clipboard history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.ValidationError(fmt.Sprintf("invalid entry id %q", args[0]))
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		snippet, err := st.GetSnippet(id)
		if err != nil {
			return err
		}

		confirmed, err := ConfirmDestructive("delete clipboard entry", map[string]string{
			"id":      args[0],
			"snippet": truncate(snippet, 60),
		})
		if err != nil {
			return err
		}
		if !confirmed {
			return nil
		}

		if err := st.DeleteEntry(id); err != nil {
			return errors.WrapWithMessage(errors.ExitCodeStore, "delete failed", err)
		}
		fmt.Printf("Deleted entry %d.\n", id)
		return nil
	},
}
