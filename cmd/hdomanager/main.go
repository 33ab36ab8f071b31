package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hdotools/hdomanager/internal/api"
	"github.com/hdotools/hdomanager/internal/auth"
	"github.com/hdotools/hdomanager/internal/config"
	"github.com/hdotools/hdomanager/internal/cron"
	"github.com/hdotools/hdomanager/internal/hdo"
	"github.com/hdotools/hdomanager/internal/migrate"
)

func main() {
	root := &cobra.Command{
		Use:   "hdomanager",
		Short: "Queryable ZSE HDO tariff-switching schedules",
	}

	root.AddCommand(
		serveCmd(),
		workerCmd(),
		migrateCmd(),
		codesCmd(),
		scheduleCmd(),
		stateCmd(),
		hashTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			mux := api.NewMux(cfg)

			addr := ":" + cfg.Port
			log.Printf("hdomanager listening on %s", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
}

func workerCmd() *cobra.Command {
	var batch bool
	var batchInterval int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the periodic refresh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if batch {
				return cron.RunBatch(ctx, cfg.DBDriver, cfg.DBDSN, batchInterval)
			}
			return cron.Run(ctx, cfg.DBDriver, cfg.DBDSN, cfg.RefreshSetting)
		},
	}
	cmd.Flags().BoolVar(&batch, "batch", false, "sweep every published code instead of the configured ones")
	cmd.Flags().IntVar(&batchInterval, "batch-interval", 86400, "batch sweep interval in seconds")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Run database migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := cmd.Context()

			dir := "up"
			if len(args) == 1 {
				dir = args[0]
			}
			switch dir {
			case "up":
				return migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN)
			case "down":
				return migrate.Down(ctx, cfg.DBDriver, cfg.DBDSN)
			case "status":
				return migrate.Status(ctx, cfg.DBDriver, cfg.DBDSN)
			default:
				return fmt.Errorf("unknown migrate direction %q", dir)
			}
		},
	}
	return cmd
}

func liveParser() *hdo.Parser {
	cfg := config.FromEnv()
	if cfg.SourceURL != "" {
		return hdo.NewParserForURL(nil, cfg.SourceURL)
	}
	return hdo.NewParser(nil)
}

func codesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List every HDO number published on the ZSE page",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := liveParser()
			defer p.Close()

			codes, err := p.ListCodes(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range codes {
				fmt.Println(c)
			}
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <hdo-number>",
		Short: "Print the normalized schedule for an HDO number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code int
			if _, err := fmt.Sscanf(args[0], "%d", &code); err != nil {
				return fmt.Errorf("invalid HDO number %q", args[0])
			}

			p := liveParser()
			defer p.Close()

			snap, err := p.GetSchedule(cmd.Context(), code)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("HDO %d not found on the source page", code)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <hdo-number>",
		Short: "Show the current tariff and next switch for an HDO number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code int
			if _, err := fmt.Sscanf(args[0], "%d", &code); err != nil {
				return fmt.Errorf("invalid HDO number %q", args[0])
			}

			p := liveParser()
			defer p.Close()

			snap, err := p.GetSchedule(cmd.Context(), code)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("HDO %d not found on the source page", code)
			}

			now := time.Now()
			tariff := hdo.TariffHigh
			if hdo.IsLowTariffAt(snap, now) {
				tariff = hdo.TariffLow
			}
			fmt.Printf("HDO %d (%s, %s): %s tariff\n", code, snap.Category, snap.RateType, tariff)

			if next := hdo.NextSwitch(snap, now); next != nil {
				fmt.Printf("next switch to %s at %s\n", next.ToTariff, next.At.Format("2006-01-02 15:04"))
			} else {
				fmt.Println("no switches scheduled")
			}
			return nil
		},
	}
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash for HDOMANAGER_REFRESH_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}
}
