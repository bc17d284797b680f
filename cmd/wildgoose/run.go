package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Kris4js/WildGooseAgent/config"
	"github.com/Kris4js/WildGooseAgent/internal/agent"
	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/skills"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

// runCMD answers a single query from the command line, streaming the
// answer to stdout. No server, no Postgres; just the agent pipeline.
func runCMD() *cobra.Command {
	var verbose bool
	var run = &cobra.Command{
		Use:   "run [query]",
		Short: "Answer a single query and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var rdb *redis.Client
			if cfg.ContextStore.Backend == "redis" {
				rdb = redis.NewClient(&redis.Options{
					Addr:     cfg.Storage.Redis.Addr(),
					Password: cfg.Storage.Redis.Password,
					DB:       cfg.Storage.Redis.DB,
				})
				if err := rdb.Ping(ctx).Err(); err != nil {
					return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
				}
			}
			ctxStore, err := contextstore.New(cfg.ContextStore, rdb)
			if err != nil {
				return err
			}
			defer ctxStore.Close()

			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}

			skillsReg := skills.NewRegistry(cfg.Skills.Dir)
			registry := tools.NewRegistry(
				tools.NewSearchTool(cfg.Tools.Search),
				tools.NewSkillTool(skillsReg),
			)
			if cfg.Tools.Browser.Enabled {
				registry.Register(tools.NewBrowserTool(cfg.Tools.Browser))
			}

			logger := log.New(os.Stderr, "[AGENT] ", log.LstdFlags)
			ag, err := agent.New(agent.Options{
				Config:   cfg.Agent,
				Routing:  cfg.LLM.Routing,
				Provider: provider,
				Registry: registry,
				Store:    ctxStore,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			cb := &agent.Callbacks{
				OnAnswerStream: func(chunk string) { fmt.Print(chunk) },
			}
			if verbose {
				cb.OnPhaseStart = func(p agent.Phase) { logger.Printf("phase %s", p) }
				cb.OnPlanCreated = func(plan *agent.Plan, iteration int) {
					logger.Printf("plan %d: %s (%d tasks)", iteration, plan.Summary, len(plan.Tasks))
				}
				cb.OnTaskComplete = func(task *agent.Task, result agent.TaskResult) {
					logger.Printf("task %s done", task.ID)
				}
				cb.OnTaskFailed = func(task *agent.Task, err error) {
					logger.Printf("task %s failed: %v", task.ID, err)
				}
			}

			result, err := ag.Run(ctx, query, "", cb)
			if err != nil {
				return err
			}
			fmt.Println()
			if verbose {
				logger.Printf("completed in %v (%d iterations)", result.Duration, result.Iterations)
			}
			return nil
		},
	}
	run.Flags().BoolVarP(&verbose, "verbose", "v", false, "log phases and tasks to stderr")

	return run
}
