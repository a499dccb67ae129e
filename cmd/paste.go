package cmd

import (
	"fmt"
	"strconv"

	"github.com/ArtsyMacaw/kaprica/internal/classify"
	"github.com/ArtsyMacaw/kaprica/pkg/errors"

	"github.com/spf13/cobra"
)

var pasteListTypes bool

var pasteCmd = &cobra.Command{
	Use:   "paste [id]",
	Short: "Print a clipboard history entry to standard output",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := resolveEntryID(st, args)
		if err != nil {
			return err
		}

		entry, err := st.GetEntry(id)
		if err != nil {
			return err
		}

		if pasteListTypes {
			for _, p := range entry.Payloads {
				fmt.Println(p.Type)
			}
			return nil
		}

		idx := classify.FindWriteType(entry)
		if idx < 0 {
			return errors.ValidationError(fmt.Sprintf("entry %d has no text payload to print; try --list-types", id))
		}
		_, err = cmd.OutOrStdout().Write(entry.Payloads[idx].Bytes)
		return err
	},
}

// resolveEntryID returns the explicit id from args, or the most recent
// entry's id when none was given.
func resolveEntryID(st interface {
	GetLatestEntries(limit, offset int) ([]int64, error)
}, args []string) (int64, error) {
	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, errors.ValidationError(fmt.Sprintf("invalid entry id %q", args[0]))
		}
		return id, nil
	}

	ids, err := st.GetLatestEntries(1, 0)
	if err != nil {
		return 0, errors.WrapWithMessage(errors.ExitCodeStore, "failed to read latest entry", err)
	}
	if len(ids) == 0 {
		return 0, errors.ValidationError("clipboard history is empty")
	}
	return ids[0], nil
}

func init() {
	pasteCmd.Flags().BoolVar(&pasteListTypes, "list-types", false, "List the entry's MIME types instead of printing content")
}
