package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/soffiafdz/palimpsest-sub000/internal"
	"github.com/soffiafdz/palimpsest-sub000/internal/apperr"
	"github.com/soffiafdz/palimpsest-sub000/internal/lint"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
	pkgconfig "github.com/soffiafdz/palimpsest-sub000/pkg/config"
)

var version = "dev"

func options(cmd *cli.Command, extra ...internal.Option) ([]internal.Option, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
	return append(opts, extra...), nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, internal.WithLogOutput(os.Stdout))
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	scope, err := wiki.ParseScope(cmd.String("scope"))
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	stats, err := internal.Generate(ctx, scope, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "generated %d pages (%s), %d written, %d deleted\n",
		sum(stats.Generated), stats.Scope, sum(stats.Changed), len(stats.Deleted))
	return nil
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	mode, err := syncer.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	scope, err := wiki.ParseScope(cmd.String("scope"))
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	res, err := internal.Sync(ctx, syncer.Options{Mode: mode, Scope: scope, Force: cmd.Bool("force")}, opts...)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		enc := json.NewEncoder(cmd.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(cmd.Root().Writer, res)
	}
	if res.Failed() {
		return fmt.Errorf("sync: %d page(s) failed: %w", len(res.Errors), apperr.ErrValidationFailed)
	}
	return nil
}

func printResult(w io.Writer, res *syncer.Result) {
	fmt.Fprintf(w, "run %s (%s, %s)\n", res.RunID, res.Mode, res.Scope)
	fmt.Fprintf(w, "  validated %d, ingested %d, skipped %d\n", res.Validated, res.Ingested, res.Skipped)
	fmt.Fprintf(w, "  generated %d, changed %d, deleted %d\n", res.Generated, res.Changed, res.Deleted)
	families := make([]string, 0, len(res.Updates))
	for f := range res.Updates {
		families = append(families, f)
	}
	sort.Strings(families)
	for _, f := range families {
		fmt.Fprintf(w, "  updated %s: %d\n", f, res.Updates[f])
	}
	for _, i := range res.Warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", i.Path, i.Message)
	}
	for _, i := range res.Errors {
		fmt.Fprintf(w, "error: %s: %s\n", i.Path, i.Message)
	}
}

func runLint(ctx context.Context, cmd *cli.Command) error {
	f, err := lint.NewFormatter(cmd.String("format"))
	if err != nil {
		return err
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	res, err := internal.Lint(ctx, cmd.Args().Slice(), opts...)
	if err != nil {
		return err
	}
	if err := f.Format(cmd.Root().Writer, res); err != nil {
		return err
	}
	if res.HasErrors() {
		return fmt.Errorf("lint: %d error(s): %w", res.ErrorCount(), apperr.ErrValidationFailed)
	}
	return nil
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Watch(ctx, opts...)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func sum[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func scopeFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "scope",
		Usage: "Scope: all, a section (journal, manuscript) or one family",
		Value: "all",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "palimpsest",
		Usage:   "Generate a Markdown wiki from the memoir database and sync hand edits back",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("PALIMPSEST_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, the event stream and the edit watcher",
				Action: runServe,
			},
			{
				Name:   "generate",
				Usage:  "Render the wiki from the database",
				Flags:  []cli.Flag{scopeFlag()},
				Action: runGenerate,
			},
			{
				Name:  "sync",
				Usage: "Validate and ingest edited pages, then regenerate",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Mode: full, ingest or regenerate",
						Value: "full",
					},
					scopeFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Ingest every editable page, edited or not",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the run result as JSON",
					},
				},
				Action: runSync,
			},
			{
				Name:      "lint",
				Usage:     "Validate editable pages without touching the database",
				ArgsUsage: "[page ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format: text or json",
						Value: "text",
					},
				},
				Action: runLint,
			},
			{
				Name:   "watch",
				Usage:  "Record hand edits in the pending-edit marker",
				Action: runWatch,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
