// Command dblpfeeds builds RSS feeds of recent DBLP publications per venue.
//
// Usage:
//
//	dblpfeeds makedb dblp_bht.xml dblp.xml.gz     # load venues and records
//	dblpfeeds files                               # write feeds/ and index files
//	dblpfeeds feeds --out feeds < dblp.xml       # stream straight to feeds, no records stored
//	dblpfeeds harvest --chunk 12 --token abc      # resume an OAI-PMH harvest
//	dblpfeeds tags                                # arXiv chunks → venue tags
//	dblpfeeds opml                                # one OPML outline per tag
//	dblpfeeds serve                               # HTTP: index.json, feeds, metrics
//	dblpfeeds mcp                                 # MCP tools over stdio
//	dblpfeeds stats
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/dblpfeeds/indexer"
)

const version = "1.0.0"

type app struct {
	configPath string
	dbPath     string
	logLevel   string
	logger     *slog.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "dblpfeeds",
		Short:         "Build per-venue RSS feeds from the DBLP dump",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = newLogger(a.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to dblpfeeds.yaml config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "path to SQLite database (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		a.makedbCmd(),
		a.filesCmd(),
		a.feedsCmd(),
		a.harvestCmd(),
		a.tagsCmd(),
		a.opmlCmd(),
		a.serveCmd(),
		a.mcpCmd(),
		a.statsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger := a.logger
		if logger == nil {
			logger = newLogger(a.logLevel)
		}
		logger.Error("dblpfeeds: fatal", "error", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func (a *app) config() (*indexer.Config, error) {
	cfg := &indexer.Config{}
	if a.configPath != "" {
		var err error
		if cfg, err = indexer.LoadConfigFile(a.configPath); err != nil {
			return nil, err
		}
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	return cfg, nil
}

func (a *app) open() (*indexer.Indexer, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	ix, err := indexer.New(cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return ix, nil
}

// withIndexer opens the index for the duration of fn.
func (a *app) withIndexer(fn func(context.Context, *indexer.Indexer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ix, err := a.open()
		if err != nil {
			return err
		}
		defer ix.Close()
		return fn(cmd.Context(), ix)
	}
}

func (a *app) makedbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "makedb <dblp_bht.xml> <dblp.xml[.gz]>",
		Short: "Load the venue index and the records of the DBLP dump",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.open()
			if err != nil {
				return err
			}
			defer ix.Close()
			ctx := cmd.Context()

			bht, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer bht.Close()
			if _, err := ix.LoadVenues(ctx, bht); err != nil {
				return fmt.Errorf("venues: %w", err)
			}

			dump, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer dump.Close()
			entry, err := ix.Ingest(ctx, args[1], dump)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
}

func (a *app) filesCmd() *cobra.Command {
	var htmlPath, jsonPath, mdPath string
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Write one feed per venue and the index files",
		Long:  "Paths default to feeds.dir, feeds.index_html, feeds.index_json and feeds.index_md from the config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open()
			if err != nil {
				return err
			}
			defer ix.Close()

			f := &ix.Config().Feeds
			flags := cmd.Flags()
			if flags.Changed("html") {
				f.IndexHTML = htmlPath
			}
			if flags.Changed("json") {
				f.IndexJSON = jsonPath
			}
			if flags.Changed("md") {
				f.IndexMarkdown = mdPath
			}
			n, err := ix.BuildConfigured(cmd.Context())
			if err != nil {
				return err
			}
			a.logger.Info("dblpfeeds: files written", "feeds", n, "dir", f.Dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&htmlPath, "html", "", "HTML index path (empty to skip)")
	cmd.Flags().StringVar(&jsonPath, "json", "", "JSON index path (empty to skip)")
	cmd.Flags().StringVar(&mdPath, "md", "", "Markdown index path (empty to skip)")
	return cmd
}

func (a *app) feedsCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "feeds [dblp.xml[.gz]]",
		Short: "Stream a dump straight to feeds without storing records",
		Long:  "Reads the dump from the named file, or standard input when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.open()
			if err != nil {
				return err
			}
			defer ix.Close()
			ctx := cmd.Context()

			source, r := "stdin", io.Reader(cmd.InOrStdin())
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				source, r = args[0], f
			}

			c, _, err := ix.Collect(ctx, source, r)
			if err != nil {
				return err
			}
			if out == "" {
				out = ix.Config().Feeds.Dir
			}
			_, err = ix.WriteCollected(ctx, c, out)
			return err
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output directory (default: feeds.dir from config)")
	return cmd
}

func (a *app) harvestCmd() *cobra.Command {
	var start indexer.HarvestStart
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Download OAI-PMH ListRecords chunks",
		Args:  cobra.NoArgs,
		RunE: a.withIndexer(func(ctx context.Context, ix *indexer.Indexer) error {
			n, err := ix.Harvest(ctx, start)
			var ce *indexer.ChunkError
			if errors.As(err, &ce) {
				a.logger.Error("dblpfeeds: harvest stopped",
					"chunks", n,
					"resume", fmt.Sprintf("--chunk %d --token %s", ce.Chunk, ce.Token))
			}
			if err != nil {
				return err
			}
			a.logger.Info("dblpfeeds: harvest done", "chunks", n)
			return nil
		}),
	}
	cmd.Flags().IntVar(&start.Chunk, "chunk", 0, "chunk number to resume at")
	cmd.Flags().StringVar(&start.Token, "token", "", "resumption token to resume with")
	return cmd
}

func (a *app) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags [chunks-dir]",
		Short: "Load harvested arXiv chunks and compute venue tags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := a.open()
			if err != nil {
				return err
			}
			defer ix.Close()
			ctx := cmd.Context()

			dir := ix.Config().Harvest.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if _, err := ix.LoadArxiv(ctx, dir); err != nil {
				return err
			}
			tags, err := ix.ComputeTags(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tags)
		},
	}
}

func (a *app) opmlCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "opml",
		Short: "Write one OPML outline per arXiv cs tag",
		Args:  cobra.NoArgs,
		RunE: a.withIndexer(func(ctx context.Context, ix *indexer.Indexer) error {
			_, err := ix.WriteOPML(ctx, out)
			return err
		}),
	}
	cmd.Flags().StringVar(&out, "out", "opml", "output directory")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var rebuild time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve index.json, feeds and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open()
			if err != nil {
				return err
			}
			defer ix.Close()

			hc := ix.Config().HTTP
			if cmd.Flags().Changed("rebuild") {
				hc.RebuildInterval = rebuild
			}
			srv := &http.Server{
				Addr:              hc.Addr,
				Handler:           ix.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				a.logger.Info("dblpfeeds: listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				a.logger.Info("dblpfeeds: shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if hc.RebuildInterval > 0 {
				g.Go(func() error {
					return ix.WatchRebuild(ctx, hc.RebuildInterval, hc.RebuildDebounce)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().DurationVar(&rebuild, "rebuild", 0, "poll interval for rebuilding feed files after ingest runs (0 disables)")
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose index tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: a.withIndexer(func(ctx context.Context, ix *indexer.Indexer) error {
			srv := mcp.NewServer(&mcp.Implementation{Name: "dblpfeeds", Version: version}, nil)
			ix.RegisterMCP(srv)
			return srv.Run(ctx, &mcp.StdioTransport{})
		}),
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print index counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := a.open()
			if err != nil {
				return err
			}
			defer ix.Close()
			stats, err := ix.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
