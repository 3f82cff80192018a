package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/civic-events/internal/config"
	"github.com/pfrederiksen/civic-events/internal/event"
	"github.com/pfrederiksen/civic-events/internal/filter"
	"github.com/pfrederiksen/civic-events/internal/logger"
	"github.com/pfrederiksen/civic-events/internal/server"
	"github.com/pfrederiksen/civic-events/internal/store"
)

const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitFallback = 2
)

// ErrFallback is returned by `feed --fail-on-fallback` when no source
// produced live items.
var ErrFallback = errors.New("community feed fell back to curated items")

type rootOptions struct {
	configFile string
	logLevel   string
	verbose    bool

	cfg *config.Config
	now func() time.Time
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:   "civic-events",
		Short: "Aggregate local civic news and publish the canonical election calendar",
		Long: `A service and CLI for local civic information.
Scrapes the school district and city sites into a short community feed and
serves the curated canonical events as filtered JSON and an ICS calendar.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file (default ./civic-events.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose output")

	cmd.AddCommand(
		newServeCmd(opts),
		newFeedCmd(opts),
		newEventsCmd(opts),
		newICSCmd(opts),
		newSeedCmd(opts),
	)

	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	} else if o.verbose {
		cfg.Log.Level = "debug"
	}
	logger.SetDefault(logger.NewWithFormat(logger.ParseLevel(cfg.Log.Level), logger.Format(cfg.Log.Format), cmd.ErrOrStderr()))
	o.cfg = cfg
	return nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the community feed, events and calendar over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			a, err := newApp(ctx, opts.cfg, serverMetrics())
			if err != nil {
				return err
			}
			defer a.Close()

			agg, err := a.aggregator()
			if err != nil {
				return err
			}
			reval, err := a.revalidator(ctx)
			if err != nil {
				return err
			}

			srv := server.New(server.Deps{
				Feed:         agg,
				Events:       a.snapshot,
				Encoder:      a.encoder(),
				Cache:        reval,
				Metrics:      a.metrics,
				FeedPolicy:   cachePolicy(opts.cfg.Feed.MaxAge, opts.cfg.Feed.StaleWhileRevalidate),
				EventsPolicy: cachePolicy(opts.cfg.Events.MaxAge, opts.cfg.Events.StaleWhileRevalidate),
			})

			logger.Info("loaded canonical events", logger.Fields{
				"version": a.snapshot.Events.Metadata.Version,
				"events":  a.snapshot.Events.Metadata.TotalEvents,
				"store":   opts.cfg.Store.Driver,
				"cache":   opts.cfg.Cache.Driver,
			})
			return srv.ListenAndServe(ctx, opts.cfg.Server.Addr, opts.cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func newFeedCmd(opts *rootOptions) *cobra.Command {
	var (
		format         string
		failOnFallback bool
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Run one community feed aggregation and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			agg, err := a.aggregator()
			if err != nil {
				return err
			}

			result := agg.Run(cmd.Context())
			if err := WriteFeed(cmd.OutOrStdout(), result, outFormat, opts.verbose); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			if failOnFallback && result.Source == event.ProvenanceFallback {
				return ErrFallback
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&failOnFallback, "fail-on-fallback", false, "Exit with status 2 when no live items were found")
	return cmd
}

// filterOptions mirrors the /api/events query parameters as flags.
type filterOptions struct {
	types     []string
	offices   []string
	parties   []string
	cities    []string
	from      string
	to        string
	dateRange string
	verified  string
	featured  string
	sortOrder string
}

func (f *filterOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "Event types (comma-separated, e.g. debate,town_hall)")
	cmd.Flags().StringSliceVar(&f.offices, "office", nil, "Office levels (local, county, state, federal)")
	cmd.Flags().StringSliceVar(&f.parties, "party", nil, "Candidate parties")
	cmd.Flags().StringSliceVar(&f.cities, "city", nil, "Venue cities")
	cmd.Flags().StringVar(&f.from, "from", "", "Earliest date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "Latest date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.dateRange, "range", "", `Date range such as "March 1-15" or "March" (overrides --from/--to)`)
	cmd.Flags().StringVar(&f.verified, "verified", "", "Only verified (true) or unverified (false) events")
	cmd.Flags().StringVar(&f.featured, "featured", "", "Only featured (true) or non-featured (false) events")
	cmd.Flags().StringVar(&f.sortOrder, "sort", "date", "Sort order: date, city, or title")
}

// build validates flag values strictly; typos on the command line are
// reported instead of silently matching nothing.
func (f *filterOptions) build(now time.Time) (*filter.EventFilters, filter.SortOrder, error) {
	order := filter.SortOrder(strings.ToLower(f.sortOrder))
	switch order {
	case filter.SortByDate, filter.SortByCity, filter.SortByTitle:
	default:
		return nil, "", fmt.Errorf("invalid sort order: %s (must be 'date', 'city', or 'title')", f.sortOrder)
	}

	values := url.Values{}
	values[filter.ParamType] = f.types
	values[filter.ParamOffice] = f.offices
	values[filter.ParamParty] = f.parties
	values[filter.ParamCity] = f.cities
	values.Set(filter.ParamFrom, f.from)
	values.Set(filter.ParamTo, f.to)

	if f.dateRange != "" {
		from, to, err := filter.ParseDateRange(f.dateRange, now)
		if err != nil {
			return nil, "", err
		}
		values.Set(filter.ParamFrom, from)
		values.Set(filter.ParamTo, to)
	}

	filters := filter.ParseQuery(values)
	if err := filters.SetFlag(filter.ParamVerified, f.verified); err != nil {
		return nil, "", err
	}
	if err := filters.SetFlag(filter.ParamFeatured, f.featured); err != nil {
		return nil, "", err
	}
	return filters, order, nil
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		filters filterOptions
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the canonical events",
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := ParseFormat(format)
			if err != nil {
				return err
			}
			f, order, err := filters.build(opts.now())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Debug("querying events", logger.Fields{"filters": f.String(), "sort": string(order)})
			result := filter.QuerySorted(a.snapshot.Events, f, order)
			if err := WriteEvents(cmd.OutOrStdout(), result, outFormat, opts.verbose); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	filters.register(cmd)
	return cmd
}

func newICSCmd(opts *rootOptions) *cobra.Command {
	var (
		out     string
		filters filterOptions
	)

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Export the canonical events as an ICS calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, order, err := filters.build(opts.now())
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			result := filter.QuerySorted(a.snapshot.Events, f, order)

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer file.Close()
				w = file
			}

			n, err := a.encoder().WriteTo(w, result.Events)
			if err != nil {
				return fmt.Errorf("writing calendar: %w", err)
			}
			logger.Debug("calendar written", logger.Fields{"events": len(result.Events), "bytes": n, "out": out})
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the calendar to this file instead of stdout")
	filters.register(cmd)
	return cmd
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the events and fallback files into PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = opts.cfg.Store.DSN
			}
			if dsn == "" {
				return fmt.Errorf("--dsn or store.dsn is required")
			}

			ctx := cmd.Context()
			files, err := store.NewFile(opts.cfg.Store.EventsPath, opts.cfg.Store.FallbackPath)
			if err != nil {
				return err
			}
			snap, err := store.LoadSnapshot(ctx, files, files)
			if err != nil {
				return err
			}

			db, err := store.OpenPostgres(ctx, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			pg := store.NewPostgres(db)
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			if err := pg.Save(ctx, snap.Events, snap.Fallback); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d events and %d fallback items (dataset %s).\n",
				len(snap.Events.Events), len(snap.Fallback), snap.Events.Metadata.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (overrides store.dsn)")
	return cmd
}

// Execute runs the CLI
func Execute() {
	code := run(context.Background(), os.Args[1:])
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	_ = logger.Default().Sync()

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrFallback):
		return ExitFallback
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
}
