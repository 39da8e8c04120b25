// agentctx manages the context budget of agent transcripts from the command
// line.
//
//	agentctx watch [flags] DIR...       run the memory worker over transcript directories
//	agentctx fit [flags] FILE           report or compact a transcript's budget
//	agentctx observations [flags] KEY   list a session's stored observations
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/youssefsiam38/agentctx"
	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/memory"
	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/transcript"
)

const usage = `agentctx keeps agent transcripts within the model's context window.

Usage:
  agentctx watch [flags] DIR...       run the memory worker over transcript directories
  agentctx fit [flags] FILE           report or compact a transcript's budget
  agentctx observations [flags] KEY   list a session's stored observations

Run "agentctx COMMAND --help" for the flags of a command.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "watch":
		return runWatch(ctx, args[1:], out)
	case "fit":
		return runFit(ctx, args[1:], out)
	case "observations":
		return runObservations(ctx, args[1:], out)
	}
	return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
}

// common holds the flags every command accepts.
type common struct {
	configPath string
	dsn        string
	logLevel   string
}

func (c *common) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", "", "config file (YAML or JSON with comments)")
	fs.StringVar(&c.dsn, "dsn", "", "observation store DSN, overriding the config file")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func (c *common) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *common) config() (*agentctx.Config, error) {
	cfg := agentctx.DefaultConfig()
	if c.configPath != "" {
		loaded, err := agentctx.LoadConfig(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.dsn != "" {
		cfg.Storage.DSN = c.dsn
	}
	return cfg, nil
}

func newEngine(ctx context.Context, cfg *agentctx.Config, logger *slog.Logger) (*agentctx.Engine, error) {
	registry := hooks.NewRegistry()
	hooks.NewLoggingHooks(logger).Register(registry)
	return agentctx.New(ctx, cfg, agentctx.WithLogger(logger), agentctx.WithHooks(registry))
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	err := fs.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return true, nil
	}
	return false, err
}

func runWatch(ctx context.Context, args []string, out io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	c.addFlags(fs)
	initial := fs.Bool("initial", true, "process existing transcripts on startup")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	dirs := fs.Args()
	if len(dirs) == 0 {
		return errors.New("watch needs at least one directory")
	}

	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := c.logger()
	engine, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	w, err := engine.NewWorker()
	if err != nil {
		return fmt.Errorf("%w (set storage.dsn or --dsn)", err)
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.Stop(stopCtx); err != nil {
			logger.Warn("worker did not stop cleanly", "error", err)
		}
	}()

	watcher, err := transcript.NewWatcher(logger, dirs...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if *initial {
		for _, dir := range dirs {
			paths, err := transcript.Scan(dir)
			if err != nil {
				return err
			}
			for _, path := range paths {
				w.Notify(path)
			}
		}
	}

	fmt.Fprintf(out, "watching %s\n", strings.Join(dirs, ", "))
	return w.Watch(ctx, watcher)
}

func runFit(ctx context.Context, args []string, out io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("fit", pflag.ContinueOnError)
	c.addFlags(fs)
	window := fs.Int("window", 0, "context window in tokens, overriding the config")
	previous := fs.String("summary", "", "previous summary to extend")
	dryRun := fs.Bool("dry-run", false, "report the budget without compacting")
	printSummary := fs.Bool("print-summary", false, "print the generated summary")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("fit needs exactly one transcript file")
	}

	cfg, err := c.config()
	if err != nil {
		return err
	}
	if *window > 0 {
		cfg.Compaction.ContextWindow = *window
	}
	// fit never touches the store.
	cfg.Storage.DSN = ""

	engine, err := newEngine(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer engine.Close()

	snap, err := transcript.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	stats := engine.Stats(snap.Messages)
	fmt.Fprintf(out, "messages:  %s\n", humanize.Comma(int64(stats.TotalMessages)))
	fmt.Fprintf(out, "tokens:    %s (%s with margin)\n", humanize.Comma(int64(stats.TotalTokens)), humanize.Comma(int64(stats.SafeTokens)))
	fmt.Fprintf(out, "usage:     %s%% of %s\n", humanize.FtoaWithDigits(stats.UsagePercent, 1), humanize.Comma(int64(cfg.Compaction.ContextWindow)))
	if !stats.NeedsCompaction || *dryRun {
		fmt.Fprintf(out, "compaction needed: %t\n", stats.NeedsCompaction)
		return nil
	}

	result := engine.Fit(ctx, transcript.SessionKey(fs.Arg(0)), snap.Messages, *previous)
	fmt.Fprintf(out, "strategy:  %s\n", result.Strategy)
	fmt.Fprintf(out, "result:    %s messages, %s tokens (took %s)\n",
		humanize.Comma(int64(len(result.Messages))), humanize.Comma(int64(result.CompactedTokens)), result.Duration.Round(time.Millisecond))
	if result.ToolOutputs != nil && result.ToolOutputs.PrunedBlocks > 0 {
		fmt.Fprintf(out, "pruned:    %d tool outputs, %s tokens\n", result.ToolOutputs.PrunedBlocks, humanize.Comma(int64(result.ToolOutputs.PrunedTokens)))
	}
	if *printSummary && result.Summary != "" {
		fmt.Fprintf(out, "\n%s\n", result.Summary)
	}
	return nil
}

func runObservations(ctx context.Context, args []string, out io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("observations", pflag.ContinueOnError)
	c.addFlags(fs)
	generation := fs.IntP("generation", "g", -1, "only list this generation")
	asContext := fs.Bool("context", false, "print the rendered <observations> block")
	wipe := fs.Bool("clear", false, "delete every observation of the session")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("observations needs exactly one session key")
	}
	sessionKey := fs.Arg(0)

	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("%w (set storage.dsn or --dsn)", agentctx.ErrMemoryDisabled)
	}
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	// Listing never calls the generator.
	mem := memory.New(store, nil, cfg.Memory, c.logger())

	switch {
	case *wipe:
		if err := mem.Clear(ctx, sessionKey); err != nil {
			return err
		}
		fmt.Fprintf(out, "cleared %s\n", sessionKey)
		return nil
	case *asContext:
		text, err := mem.Context(ctx, sessionKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	var filter *int
	if *generation >= 0 {
		filter = memory.Generation(*generation)
	}
	rows, err := mem.Store().List(ctx, sessionKey, filter)
	if err != nil {
		return err
	}
	mark, err := mem.Store().HighWaterMark(ctx, sessionKey)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GEN\tRANGE\tPRIORITY\tTOKENS\tCREATED\tCONTENT")
	for _, row := range rows {
		fmt.Fprintf(tw, "%d\t%d-%d\t%s\t%s\t%s\t%s\n",
			row.Generation(),
			row.MessageStartIndex, row.MessageEndIndex,
			row.Priority,
			humanize.Comma(int64(row.TokenEstimate)),
			humanize.Time(row.CreatedAt),
			oneLine(row.Content, 80),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d observations, high-water mark %d\n", len(rows), mark)
	return nil
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	return s
}
