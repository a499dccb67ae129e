package cmd

import (
	"fmt"
	"strings"

	"github.com/ArtsyMacaw/kaprica/internal/store"
	"github.com/ArtsyMacaw/kaprica/pkg/errors"

	"github.com/spf13/cobra"
)

var (
	searchMimeType bool
	searchGlob     bool
	searchLimit    int
)

type searchResult struct {
	ID      int64  `json:"id" yaml:"id"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search the clipboard history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := store.SearchContent
		switch {
		case searchMimeType && searchGlob:
			return errors.ValidationError("--mime-type and --glob are mutually exclusive")
		case searchMimeType:
			kind = store.SearchMimeType
		case searchGlob:
			kind = store.SearchGlob
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := st.FindMatchingEntries(kind, args[0], searchLimit)
		if err != nil {
			return errors.WrapWithMessage(errors.ExitCodeStore, "search failed", err)
		}

		results := make([]searchResult, 0, len(ids))
		for _, id := range ids {
			snippet, err := st.GetSnippet(id)
			if err != nil {
				continue
			}
			results = append(results, searchResult{ID: id, Snippet: snippet})
		}

		out := NewOutputWriter(outputFormat)
		if out.IsStructured() {
			return out.Write(results)
		}

		if len(results) == 0 {
			fmt.Println("No matching entries.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%6d  %s\n", r.ID, truncate(r.Snippet, 72))
		}
		return nil
	},
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func init() {
	searchCmd.Flags().BoolVar(&searchMimeType, "mime-type", false, "Match against MIME type instead of content")
	searchCmd.Flags().BoolVar(&searchGlob, "glob", false, "Match content as a glob pattern instead of substring")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum number of results")
}
