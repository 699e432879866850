package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/sourcesim/internal/config"
	"github.com/standardbeagle/sourcesim/internal/errors"
	"github.com/standardbeagle/sourcesim/internal/index"
	"github.com/standardbeagle/sourcesim/internal/query"
	"github.com/standardbeagle/sourcesim/internal/report"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/store/memory"
	"github.com/standardbeagle/sourcesim/internal/store/sqlite"
	"github.com/standardbeagle/sourcesim/internal/types"
	"github.com/standardbeagle/sourcesim/internal/version"
	"github.com/standardbeagle/sourcesim/pkg/pathutil"
)

var Version = version.Version

// loadConfigWithOverrides loads configuration and applies CLI flag overrides,
// the way the teacher's loadConfigWithOverrides layers flags over a KDL file.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %q: %w", root, err)
	}

	configPath := c.String("config")
	if configPath == "" {
		configPath = filepath.Join(absRoot, ".sourcesim.kdl")
	}

	cfg, err := config.Load(configPath, absRoot)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", configPath, err)
	}

	if c.IsSet("db") {
		cfg.Store.DB = c.String("db")
	}
	return cfg, nil
}

// openStore picks a Store implementation by cfg.Store.Kind. sqlite is the
// default so that separate CLI invocations (hash, then query) against the
// same project root share state; "memory" is an explicit opt-out via
// store.kind in the KDL config, useful for one-shot test runs.
func openStore(cfg *config.Config) (store.Store, error) {
	docFreqPath := filepath.Join(cfg.Project.Root, ".sourcesim.docfreq.json")
	switch cfg.Store.Kind {
	case "memory":
		return memory.New(docFreqPath), nil
	default:
		return sqlite.Open(cfg.Store.DB, docFreqPath)
	}
}

func main() {
	app := &cli.App{
		Name:                   "sourcesim",
		Usage:                  "duplicate and near-duplicate source code detection",
		Version:                Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file path (default <root>/.sourcesim.kdl)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "project root directory to index",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "sqlite file path (default <root>/.sourcesim.db); overrides store.db from the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "hash",
				Usage: "index a repository: build DocFreq, sketch and band every document",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "granularity",
						Aliases: []string{"m"},
						Usage:   "file|func",
						Value:   "file",
					},
				},
				Action: hashCommand,
			},
			{
				Name:      "query",
				Usage:     "query a single file for duplicates and similar documents",
				ArgsUsage: "<path>[:identifier:line]",
				Action:    queryCommand,
			},
			{
				Name:   "report",
				Usage:  "enumerate all duplicate clusters and similar components in the index",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "filter-similarity",
						Usage: "re-estimate pairwise similarity within each component and drop those below the floor",
					},
				},
				Action: reportCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "sourcesim: %v\n", err)
		os.Exit(1)
	}
}

func hashCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	writer, err := index.New(cfg, st)
	if err != nil {
		return err
	}

	granularity := types.GranularityFile
	if c.String("granularity") == "func" {
		granularity = types.GranularityFunc
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := writer.Run(ctx, granularity)
	if err != nil {
		printSkipSummary(summary)
		return err
	}

	printSkipSummary(summary)
	fmt.Printf("indexed %s (%d documents skipped)\n", cfg.Project.Root, summary.Total())
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: sourcesim query <path>[:identifier:line]")
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	arg := c.Args().First()
	path, _, _ := parseLine(arg)
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.KindInputUnreadable, "query", err).WithDoc(path)
	}

	if abs, absErr := filepath.Abs(path); absErr == nil {
		path = pathutil.ToRelative(abs, cfg.Project.Root)
	}

	engine, err := query.New(cfg, st)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := engine.Query(ctx, path, content)
	if err != nil {
		var engErr *errors.Error
		if asEngineError(err, &engErr) && engErr.Kind == errors.KindIndexNotBuilt {
			fmt.Fprintln(os.Stderr, "no index found: run `sourcesim hash` first")
		}
		return err
	}

	fmt.Printf("duplicates: %d\n", len(result.Duplicates))
	for _, m := range result.Duplicates {
		fmt.Printf("  = %s//%s@%s\n", m.Repo, m.Path, m.Blob)
	}
	fmt.Printf("similar: %d\n", len(result.Similar))
	sort.Slice(result.Similar, func(i, j int) bool { return result.Similar[i].Similarity > result.Similar[j].Similarity })
	for _, s := range result.Similar {
		fmt.Printf("  ~ %.3f %s//%s@%s\n", s.Similarity, s.Meta.Repo, s.Meta.Path, s.Meta.Blob)
	}
	return nil
}

func reportCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	engine := report.New(cfg, st)

	ctx, cancel := signalContext()
	defer cancel()

	result, err := engine.Run(ctx, c.Bool("filter-similarity"))
	if err != nil {
		return err
	}

	fmt.Printf("duplicate clusters: %d\n", len(result.Duplicates))
	for _, cluster := range result.Duplicates {
		fmt.Printf("  cluster %s (%d documents)\n", cluster.Blob, len(cluster.Docs))
		for _, m := range cluster.Docs {
			fmt.Printf("    %s//%s\n", m.Repo, m.Path)
		}
	}

	fmt.Printf("similar components: %d\n", len(result.Similar))
	for i, comp := range result.Similar {
		fmt.Printf("  component %d (%d documents)\n", i+1, len(comp.Blobs))
		for _, b := range comp.Blobs {
			fmt.Printf("    %s\n", b)
		}
	}

	if result.TruncatedBuckets > 0 {
		fmt.Printf("warning: %d bucket(s) truncated at the configured fan-out cap\n", result.TruncatedBuckets)
	}
	return nil
}

func printSkipSummary(summary *errors.SkipSummary) {
	if summary == nil || summary.Total() == 0 {
		return
	}
	counts := summary.Counts()
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	fmt.Println("skipped documents:")
	for _, reason := range reasons {
		fmt.Printf("  %s: %d\n", reason, counts[reason])
	}
}

// asEngineError unwraps err looking for an *errors.Error, the way the
// teacher's debug package inspects typed errors before formatting them.
func asEngineError(err error, target **errors.Error) bool {
	for err != nil {
		if e, ok := err.(*errors.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// parseLine splits the "<path>[:identifier:line]" query argument form of
// spec §6. The identifier/line suffix is accepted but not yet used to
// scope extraction to a sub-range; whole-file query is the only mode
// wired today.
func parseLine(arg string) (path, identifier string, line int) {
	parts := strings.SplitN(arg, ":", 3)
	path = parts[0]
	if len(parts) == 3 {
		identifier = parts[1]
		line, _ = strconv.Atoi(parts[2])
	}
	return path, identifier, line
}
