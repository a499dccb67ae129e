package main

import (
	"os"

	"github.com/ArtsyMacaw/kaprica/internal/engine"
	"github.com/ArtsyMacaw/kaprica/internal/retention"
	"github.com/ArtsyMacaw/kaprica/internal/store"
	"github.com/ArtsyMacaw/kaprica/pkg/config"
	"github.com/ArtsyMacaw/kaprica/pkg/errors"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	Version   string
	BuildTime string
	GitCommit string
)

var (
	seatFlag     string
	databaseFlag string
	sizeFlag     string
	expireFlag   int
	limitFlag    int
	configFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "kapcd",
	Short: "kaprica clipboard manager daemon",
	Long: `kapcd watches the Wayland clipboard selection, stores every copied
entry in a local history database, and re-serves the most recent entry
after the owning client goes away.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger.SetLevel(logLevelFlag)

	opts, err := config.Load(config.Overrides{
		Seat:     seatFlag,
		Database: databaseFlag,
		Size:     sizeFlag,
		Expire:   expireFlag,
		Limit:    limitFlag,
		Config:   configFlag,
	})
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return errors.StoreError(err)
	}
	defer st.Close()

	sched := retention.New(st, retention.Options{
		ExpireDays: opts.Expire,
		SizeCap:    opts.Size,
		Limit:      opts.Limit,
	})
	defer sched.Stop()

	e, err := engine.Init(opts.Seat, st, sched)
	if err != nil {
		return errors.TransportError(err)
	}
	defer e.Close()

	logger.Info().Str("database", opts.Database).Msg("kapcd: started")

	return e.Run()
}

func init() {
	rootCmd.Flags().StringVar(&seatFlag, "seat", "", "Wayland seat name (accepted but not used: the first available seat is always bound)")
	rootCmd.Flags().StringVar(&databaseFlag, "database", "", "History database path (default: XDG data dir)")
	rootCmd.Flags().StringVar(&sizeFlag, "size", "", "Maximum history size, e.g. 2GB (default: 2GB)")
	rootCmd.Flags().IntVar(&expireFlag, "expire", 0, "Entry expiry in days (default: 30)")
	rootCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum entry count (default: 10000)")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Config file path override")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			ver := Version
			if ver == "" {
				ver = "dev"
			}
			cmd.Println("kapcd version " + ver)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitCode := errors.HandleReturn(err)
		os.Exit(int(exitCode))
	}
}
