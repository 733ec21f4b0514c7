package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"SpinPull/internal/di"
	"SpinPull/internal/domain/wheel"
	"SpinPull/internal/usecase"
	"SpinPull/pkg/config"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/queue"
	"SpinPull/pkg/store"
)

const commandTimeout = 10 * time.Second

// cli holds the persistent flags and the pieces tests swap out.
type cli struct {
	configPath string
	asJSON     bool
	newLogger  func(w io.Writer) (*applogger.Logger, error)
}

func newCLI() *cli {
	return &cli{
		newLogger: func(io.Writer) (*applogger.Logger, error) {
			return applogger.New(&applogger.Config{Level: "warn", Format: "console", Output: "stderr"})
		},
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "spinctl",
		Short:         "Operate a SpinPull deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config/config.yaml", "config file path")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		c.healthCmd(),
		c.statsCmd(),
		c.pendingCmd(),
		c.pushCmd(),
		c.purgeCmd(),
	)
	return root
}

// session loads the config and wires the in-process pipeline.
type session struct {
	cfg   *config.Config
	l     *applogger.Logger
	tools *di.Tools
}

func (c *cli) open(cmd *cobra.Command) (*session, func(), error) {
	cfg, err := config.LoadWithEnv(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	l, err := c.newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	tools, cleanup, err := di.InitializeTools(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	return &session{cfg: cfg, l: l, tools: tools}, cleanup, nil
}

func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, cleanup, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	return fn(ctx, s)
}

// print writes v as indented JSON under --json, otherwise calls text.
func (c *cli) print(cmd *cobra.Command, v interface{}, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the state store and report key counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				st := s.tools.Query.Status(ctx)
				if err := c.print(cmd, st, func(w io.Writer) {
					state := "ok"
					if !st.Reachable {
						state = "unreachable: " + st.Error
					}
					fmt.Fprintf(w, "store: %s (%s)\n", st.Backend, state)
					for _, k := range sortedKeys(st.Keys) {
						fmt.Fprintf(w, "  %-12s %d\n", k, st.Keys[k])
					}
				}); err != nil {
					return err
				}
				if !st.Reachable {
					return fmt.Errorf("store unreachable: %s", st.Error)
				}
				return nil
			})
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show spin counters and prediction performance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				rs, err := s.tools.Query.Stats(ctx)
				if err != nil {
					return err
				}
				ai, err := s.tools.Query.AIStats(ctx)
				if err != nil {
					return err
				}
				out := map[string]interface{}{"roulette": rs, "ai": ai}
				return c.print(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "spins: %d\n", rs.TotalSpins)
					for _, col := range wheel.Colors {
						fmt.Fprintf(w, "  %-6s %d (%.1f%%)\n", col, rs.Colors[col], rs.ColorPercentages[string(col)])
					}
					if rs.Latest != nil {
						fmt.Fprintf(w, "latest: %d\n", *rs.Latest)
					}
					fmt.Fprintf(w, "predictions verified: %d  wins: %d  win rate: %.1f%%  pending: %d\n",
						ai.Game.TotalPredictions, ai.Game.TotalWins, ai.Game.WinRate*100, ai.Pending)
				})
			})
		},
	}
}

func (c *cli) pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending predictions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) error {
				preds, err := s.tools.Query.Pending(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd, preds, func(w io.Writer) {
					if len(preds) == 0 {
						fmt.Fprintln(w, "no pending predictions")
						return
					}
					for _, p := range preds {
						fmt.Fprintf(w, "%s  last=%d  main=%s  confidence=%.2f\n",
							p.ID, p.LastNumber, joinInts(p.PredictedMain), p.Confidence)
					}
				})
			})
		},
	}
}

func (c *cli) pushCmd() *cobra.Command {
	var (
		ts     int64
		direct bool
	)
	cmd := &cobra.Command{
		Use:   "push <number>",
		Short: "Submit a spin through the Redis bus, or process it in-process with --direct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || !wheel.Valid(n) {
				return fmt.Errorf("number must be an integer in [%d, %d], got %q", wheel.Min, wheel.Max, args[0])
			}
			var at *int64
			if cmd.Flags().Changed("ts") {
				at = &ts
			}
			return c.run(cmd, func(ctx context.Context, s *session) error {
				if direct {
					out, err := s.tools.Orchestrator.ProcessSpin(ctx, n, at)
					if err != nil {
						return err
					}
					return c.print(cmd, out, func(w io.Writer) {
						fmt.Fprintf(w, "processed %d (%s) as %s, verified %d\n",
							n, out.Ingest.Spin.Color, out.Ingest.EntryID, out.VerifiedCount)
						if out.NewPrediction != nil {
							fmt.Fprintf(w, "new prediction %s\n", out.NewPrediction.ID)
						}
					})
				}
				return c.enqueue(ctx, cmd, s, n, at)
			})
		},
	}
	cmd.Flags().Int64Var(&ts, "ts", 0, "spin timestamp in unix seconds or milliseconds (default now)")
	cmd.Flags().BoolVar(&direct, "direct", false, "run the orchestrator in-process instead of enqueueing")
	return cmd
}

func (c *cli) enqueue(ctx context.Context, cmd *cobra.Command, s *session, n int, ts *int64) error {
	rs, ok := s.tools.Store.(*store.RedisStore)
	if !ok {
		return fmt.Errorf("the bus needs the redis store backend; use --direct with %q", s.cfg.Store.Backend)
	}
	q, err := queue.NewRedisPublisher(s.l, rs.Client(), queue.WithKeyPrefix(s.cfg.Queue.Prefix))
	if err != nil {
		return err
	}
	defer func() { _ = q.Stop(context.Background()) }()

	id, err := q.Enqueue(ctx, usecase.SpinIngestJobType, usecase.SpinMessage{Number: &n, Timestamp: ts})
	if err != nil {
		return err
	}
	out := map[string]interface{}{"message_id": id, "number": n, "timestamp": ts}
	return c.print(cmd, out, func(w io.Writer) {
		fmt.Fprintf(w, "enqueued %d as %s\n", n, id)
	})
}

func (c *cli) purgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete prediction records, results, the pending list and prediction stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to purge prediction state without --yes")
			}
			return c.run(cmd, func(ctx context.Context, s *session) error {
				deleted, err := s.tools.Orchestrator.PurgePredictions(ctx)
				if err != nil {
					return err
				}
				return c.print(cmd, deleted, func(w io.Writer) {
					for _, k := range sortedKeys(deleted) {
						fmt.Fprintf(w, "deleted %-12s %d\n", k, deleted[k])
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the purge")
	return cmd
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
