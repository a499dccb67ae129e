package cmd

import (
	"github.com/ArtsyMacaw/kaprica/internal/store"
	"github.com/ArtsyMacaw/kaprica/pkg/config"
	"github.com/ArtsyMacaw/kaprica/pkg/errors"
)

// openStore resolves Options the same way kapcd does (file then CLI
// overrides) and opens the shared history database. kapc never starts the
// engine; it only reads and writes rows kapcd itself reconciles against on
// its next event.
func openStore() (*store.Store, error) {
	opts, err := config.Load(config.Overrides{
		Database: databaseOverride,
		Config:   configOverride,
	})
	if err != nil {
		return nil, errors.WrapWithMessage(errors.ExitCodeValidation, "failed to resolve configuration", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, errors.StoreError(err)
	}
	return st, nil
}
