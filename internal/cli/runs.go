package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tickerlab/internal/domain"
	"tickerlab/internal/store"
)

func (a *app) runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted backtest runs",
	}

	var (
		ticker string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListBacktests(cmd.Context(), strings.ToUpper(ticker), limit)
			if err != nil {
				return err
			}
			printRunList(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	list.Flags().StringVar(&ticker, "ticker", "", "only runs for this ticker")
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs (0 for all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run summary and its trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return &domain.ValidationError{Field: "run_id", Reason: fmt.Sprintf("invalid run id %q", args[0])}
			}
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			run, trades, err := s.GetBacktest(cmd.Context(), id)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			printTrades(cmd.OutOrStdout(), trades)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func (a *app) instrumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instruments",
		Short: "List or delete instruments",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List known instruments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			insts, err := s.ListInstruments(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "TICKER\tNAME\tCLASS\tINDUSTRY")
			for _, in := range insts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", in.Ticker, in.DisplayName, in.AssetClass, orDash(in.Industry))
			}
			return w.Flush()
		},
	}
	del := &cobra.Command{
		Use:   "delete <ticker>",
		Short: "Delete an instrument with its bars and backtest runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ticker := strings.ToUpper(args[0])
			if err := s.DeleteInstrument(cmd.Context(), ticker); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", ticker)
			return nil
		},
	}
	cmd.AddCommand(list, del)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		ticker    string
		timeframe string
		dir       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy stored bars into the Parquet archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			tf, err := domain.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			tickers := []string{strings.ToUpper(ticker)}
			if ticker == "" {
				insts, err := s.ListInstruments(ctx)
				if err != nil {
					return err
				}
				tickers = tickers[:0]
				for _, in := range insts {
					tickers = append(tickers, in.Ticker)
				}
			}

			if dir == "" {
				dir = a.cfg.Storage.ArchiveDir
			}
			archive := store.NewParquetArchive(dir)
			total := 0
			for _, t := range tickers {
				q := domain.Query{
					Ticker:    t,
					Start:     time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
					End:       time.Now().UTC(),
					Timeframe: tf,
				}
				bars, err := s.ReadBars(ctx, q)
				if err != nil {
					return err
				}
				if err := archive.WriteBars(ctx, bars); err != nil {
					return err
				}
				total += len(bars)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d %s bars for %d tickers to %s\n",
				total, tf, len(tickers), filepath.Clean(dir))
			return nil
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "export one ticker (default all)")
	cmd.Flags().StringVar(&timeframe, "timeframe", "daily", "daily, weekly or monthly")
	cmd.Flags().StringVar(&dir, "dir", "", "archive directory (default storage.archive_dir)")
	return cmd
}
