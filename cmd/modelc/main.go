package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"modelc/internal/analysis"
	"modelc/internal/config"
	"modelc/internal/crawler"
	"modelc/internal/graph"
	"modelc/internal/pipeline"
	"modelc/internal/skeleton"
	"modelc/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:           "modelc",
		Short:         "Incremental type checker for skeleton model sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	dbPath     string
	verbosity  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "modelc.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the compile cache (SQLite); overrides cache.path")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", -1, "Log verbosity; overrides log.verbosity")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// session bundles what every command needs: configuration, logger, the
// cache store and a runtime over the cached graph.
type session struct {
	cfg   *config.Config
	log   logr.Logger
	store *storage.SQLiteStore
	rt    *pipeline.Runtime
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		cfg.Cache.Path = dbPath
	}
	if verbosity >= 0 {
		cfg.Log.Verbosity = verbosity
	}

	stdr.SetVerbosity(cfg.Log.Verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("modelc")

	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gctx, err := storage.Load(ctx, store, logger)
	if errors.Is(err, storage.ErrNoSnapshot) {
		gctx, err = graph.NewContext(logger), nil
	}
	if err != nil {
		store.Close()
		return nil, err
	}

	rt := pipeline.New(gctx, pipeline.Options{
		MaxPasses:       cfg.Compiler.MaxPasses,
		MaxLambdaPasses: cfg.Compiler.MaxLambdaPasses,
		RichDiagnostics: cfg.Compiler.RichDiagnostics,
	}, logger)
	return &session{cfg: cfg, log: logger, store: store, rt: rt}, nil
}

func (s *session) save(ctx context.Context) error {
	fmt.Println("💾 Saving compile cache...")
	return s.store.SaveSnapshot(ctx, s.rt.Context().View().Snapshot())
}

func (s *session) Close() error { return s.store.Close() }

func report(res *pipeline.Result) {
	if len(res.Removed) > 0 {
		fmt.Printf("🗑️  Removed %d sources, %d dependent elements unbound.\n", len(res.Removed), res.Unbound)
	}
	fmt.Printf("✅ Compiled %d sources, skipped %d unchanged, %d failed (%v).\n",
		len(res.Compiled), len(res.Skipped), len(res.Failed), res.Duration)
	for _, p := range res.Passes {
		fmt.Printf("  -> pass %d: attempted=%d resolved=%d deferred=%d failed=%d\n",
			p.Pass, p.Attempted, p.Resolved, p.Deferred, p.Failed)
	}
	for _, id := range res.FailedSources() {
		fmt.Printf("❌ %s\n", id)
		for _, line := range strings.Split(res.Failed[id].Error(), "\n") {
			fmt.Printf("   %s\n", line)
		}
	}
}

// classify compares discovered documents with the content hashes of the
// cached sources.
func classify(docs []*skeleton.Document, cached map[string]string) (added, modified, unchanged int) {
	for _, d := range docs {
		hash, ok := cached[d.ID]
		switch {
		case !ok:
			added++
		case hash != skeleton.ContentHash(d.Text):
			modified++
		default:
			unchanged++
		}
	}
	return added, modified, unchanged
}

var compileCmd = &cobra.Command{
	Use:   "compile [paths...]",
	Short: "Discover skeleton documents and compile them incrementally",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		roots := args
		if len(roots) == 0 {
			roots = []string{s.cfg.Project.Root}
		}

		cr := crawler.NewCrawler(s.cfg.Project.Sources, s.log)
		var docs []*skeleton.Document
		for _, root := range roots {
			fmt.Printf("📂 Scanning directory: %s\n", root)
			err := cr.ScanProject(root,
				func(d *skeleton.Document) { docs = append(docs, d) },
				func(path string, err error) { fmt.Printf("⚠️  Skipping %s: %v\n", path, err) })
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", root, err)
			}
		}

		// Sources that vanished from disk are removed before compiling.
		present := make(map[string]bool, len(docs))
		for _, d := range docs {
			present[d.ID] = true
		}
		for _, info := range s.rt.Sources() {
			if !present[info.ID] && !info.Immutable {
				if err := s.rt.Delete(info.ID); err != nil {
					return err
				}
			}
		}
		unloaded, err := s.rt.Unload()
		if err != nil {
			return fmt.Errorf("failed to unload removed sources: %w", err)
		}

		cached, err := s.store.SourceHashes(ctx)
		if err != nil {
			return fmt.Errorf("failed to read cached sources: %w", err)
		}
		added, modified, unchanged := classify(docs, cached)
		fmt.Printf("  -> %d new, %d modified, %d unchanged\n", added, modified, unchanged)

		fmt.Printf("🚀 Compiling %d documents...\n", len(docs))
		start := time.Now()
		res, err := s.rt.Compile(docs...)
		if err != nil {
			return fmt.Errorf("compile failed: %w", err)
		}
		res.Removed, res.Unbound = unloaded.Removed, res.Unbound+unloaded.Unbound
		report(res)
		s.log.V(1).Info("compile command finished", "elapsed", time.Since(start))

		if err := s.save(ctx); err != nil {
			return fmt.Errorf("failed to save cache: %w", err)
		}
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d sources failed to compile", len(res.Failed))
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <source-id>...",
	Short: "Remove sources from the compiled graph and recompile their dependents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Println("🔍 Analyzing impact...")
		impact := analysis.NewAnalyzer(s.rt.Context().View()).AnalyzeImpact(args)
		fmt.Printf("  -> %d elements removed\n", len(impact.DirectlyAffected))
		fmt.Printf("  -> %d elements depend on them\n", len(impact.IndirectlyAffected))

		for _, id := range args {
			if err := s.rt.Delete(id); err != nil {
				return err
			}
		}
		unloaded, err := s.rt.Unload()
		if err != nil {
			return fmt.Errorf("failed to unload: %w", err)
		}
		res, err := s.rt.Compile()
		if err != nil {
			return fmt.Errorf("recompile failed: %w", err)
		}
		res.Removed, res.Unbound = unloaded.Removed, res.Unbound+unloaded.Unbound
		report(res)
		return s.save(ctx)
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <path>",
	Short: "Show kind, state, dependents and descriptor of an element",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(context.Background())
		if err != nil {
			return err
		}
		defer s.Close()

		ds, err := analysis.NewAnalyzer(s.rt.Context().View()).Describe(args[0])
		if err != nil {
			return err
		}
		for _, d := range ds {
			fmt.Printf("%s (%s)\n", d.Path, d.Kind)
			fmt.Printf("  source:     %s\n", d.Source)
			fmt.Printf("  state:      %s\n", d.State)
			if d.Signature != "" {
				fmt.Printf("  signature:  %s\n", d.Signature)
				fmt.Printf("  descriptor: %s\n", d.Descriptor)
			}
			fmt.Printf("  dependents: %d\n", len(d.Dependents))
			for _, dep := range d.Dependents {
				fmt.Printf("    - %s\n", dep)
			}
		}
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List cached sources with their compile state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(context.Background())
		if err != nil {
			return err
		}
		defer s.Close()

		infos := s.rt.Sources()
		if len(infos) == 0 {
			fmt.Println("📭 No sources cached.")
			return nil
		}
		for _, info := range infos {
			mark := "✅"
			if !info.Compiled {
				mark = "⏳"
			}
			flags := ""
			if info.Immutable {
				flags = " (immutable)"
			}
			fmt.Printf("%s %s%s: %d elements, hash %.12s\n", mark, info.ID, flags, info.Elements, info.Hash)
		}
		return nil
	},
}
