package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/ananyarao/canvasflow/pkg/assets"
	"github.com/ananyarao/canvasflow/pkg/engine"
	"github.com/ananyarao/canvasflow/pkg/flow"
	"github.com/ananyarao/canvasflow/pkg/task"
	"github.com/ananyarao/canvasflow/pkg/vendorcfg"
	"github.com/ananyarao/canvasflow/pkg/vendorcfg/postgres"

	// Register all vendor adapters via their init() functions.
	_ "github.com/ananyarao/canvasflow/pkg/task/vendors"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "canvasflow",
		Short: "Canvasflow — generative canvas runner",
		Long: `Canvasflow executes DOT-graph canvases of generative nodes.

Each node is a typed generation step (text, image, video, composite, note).
Edges feed upstream outputs into downstream prompts.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(runCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(resumeCmd())
	root.AddCommand(showCmd())
	return root
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd() *cobra.Command {
	var (
		concurrency int
		statePath   string
		configDB    string
		userID      string
		only        []string
	)

	cmd := &cobra.Command{
		Use:   "run <canvas.dot>",
		Short: "Execute a canvas from the beginning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCanvas(args[0])
			if err != nil {
				return err
			}

			store := flow.NewMemStore(c.Nodes)
			if statePath != "" {
				store.SaveFunc = stateSaver(statePath)
			}

			sched, closeFn, err := buildScheduler(cmd.Context(), store, configDB, userID, concurrency)
			if err != nil {
				return err
			}
			defer closeFn()

			var onlySet map[string]bool
			if len(only) > 0 {
				onlySet = make(map[string]bool, len(only))
				for _, id := range only {
					onlySet[id] = true
				}
			}

			ctx := signalContext(cmd.Context(), store, c.Nodes)
			if err := sched.RunGraph(ctx, c.Nodes, c.Edges, onlySet); err != nil {
				return err
			}
			printSummary(store, c.Nodes)
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "maximum nodes executing at once")
	cmd.Flags().StringVar(&statePath, "state", "", "path to write node state JSON (enables resume)")
	cmd.Flags().StringVar(&configDB, "config-db", os.Getenv("CANVASFLOW_CONFIG_DB"), "Postgres DSN for vendor provider/token config (optional)")
	cmd.Flags().StringVar(&userID, "user", os.Getenv("CANVASFLOW_USER"), "user identity for vendor resolution")
	cmd.Flags().StringSliceVar(&only, "only", nil, "restrict execution to these node ids")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <canvas.dot>",
		Short: "Validate a canvas DOT file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read file: %w", err)
			}
			c, err := flow.ParseDOT(string(src))
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			if lintErr := flow.ValidateErr(c); lintErr != nil {
				return lintErr
			}
			fmt.Printf("OK: canvas %q is valid (%d nodes, %d edges)\n",
				c.Name, len(c.Nodes), len(c.Edges))
			return nil
		},
	}
	return cmd
}

// ─── resume ───────────────────────────────────────────────────────────────────

func resumeCmd() *cobra.Command {
	var (
		configDB string
		userID   string
	)

	cmd := &cobra.Command{
		Use:   "resume <canvas.dot> <state.json>",
		Short: "Re-attach to in-flight remote tasks from a saved state file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCanvas(args[0])
			if err != nil {
				return err
			}
			if err := loadState(args[1], c.Nodes); err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			store := flow.NewMemStore(c.Nodes)
			store.SaveFunc = stateSaver(args[1])

			sched, closeFn, err := buildScheduler(cmd.Context(), store, configDB, userID, 1)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := signalContext(cmd.Context(), store, c.Nodes)
			resumed := sched.Exec.ResumeRuns(ctx, store.Nodes())
			if len(resumed) == 0 {
				fmt.Println("nothing to resume")
				return nil
			}
			fmt.Printf("resumed %d node(s): %s\n", len(resumed), strings.Join(resumed, ", "))
			printSummary(store, c.Nodes)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDB, "config-db", os.Getenv("CANVASFLOW_CONFIG_DB"), "Postgres DSN for vendor provider/token config (optional)")
	cmd.Flags().StringVar(&userID, "user", os.Getenv("CANVASFLOW_USER"), "user identity for vendor resolution")
	return cmd
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func loadCanvas(path string) (*flow.Canvas, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read canvas file: %w", err)
	}
	c, err := flow.ParseDOT(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse canvas: %w", err)
	}
	if lintErr := flow.ValidateErr(c); lintErr != nil {
		return nil, fmt.Errorf("invalid canvas: %w", lintErr)
	}
	flow.ApplyStylesheet(c)
	return c, nil
}

// buildScheduler wires the executor against either a Postgres-backed vendor
// config store or the env-fallback in-memory one.
func buildScheduler(ctx context.Context, store flow.Store, configDB, userID string, concurrency int) (*engine.Scheduler, func(), error) {
	var (
		cfgStore vendorcfg.Store
		closeFn  = func() {}
	)
	if configDB != "" {
		pool, err := pgxpool.New(ctx, configDB)
		if err != nil {
			return nil, nil, fmt.Errorf("connect config db: %w", err)
		}
		cfgStore = postgres.New(pool)
		closeFn = pool.Close
	} else {
		cfgStore = vendorcfg.NewMemStore()
	}

	exec := &engine.Executor{
		Store:    store,
		Resolver: vendorcfg.NewResolver(cfgStore),
		Adapters: task.Default,
		Assets:   assets.Passthrough{},
		UserID:   userID,
	}
	return &engine.Scheduler{Exec: exec, Concurrency: concurrency}, closeFn, nil
}

// stateSaver returns a SaveFunc that writes the node snapshot as JSON.
func stateSaver(path string) func([]flow.Node) error {
	return func(nodes []flow.Node) error {
		data, err := json.MarshalIndent(nodes, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
}

// loadState merges a saved node snapshot back into the parsed canvas so
// pending task ids and accumulated results survive a process restart.
func loadState(path string, nodes []*flow.Node) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var saved []flow.Node
	if err := json.Unmarshal(data, &saved); err != nil {
		return err
	}
	byID := make(map[string]flow.Node, len(saved))
	for _, n := range saved {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if s, ok := byID[n.ID]; ok {
			n.Data = s.Data
		}
	}
	return nil
}

func printSummary(store *flow.MemStore, nodes []*flow.Node) {
	for _, n := range nodes {
		cur, ok := store.Node(n.ID)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s  %-9s", cur.ID, cur.Data.Status)
		if cur.Data.LastError != "" {
			line += "  " + cur.Data.LastError
		} else if cur.Data.LastResult != nil && cur.Data.LastResult.Preview != "" {
			line += "  " + cur.Data.LastResult.Preview
		}
		fmt.Println(line)
	}
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
// The first signal also cancels every node's run token so polling loops
// exit cooperatively.
func signalContext(parent context.Context, store flow.Store, nodes []*flow.Node) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[canvasflow] interrupted — cancelling run")
			for _, n := range nodes {
				store.Cancel(n.ID)
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
