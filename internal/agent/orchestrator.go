package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kris4js/WildGooseAgent/config"
	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
	"github.com/Kris4js/WildGooseAgent/internal/llm"
	"github.com/Kris4js/WildGooseAgent/internal/telemetry"
	"github.com/Kris4js/WildGooseAgent/internal/tools"
)

var tracer trace.Tracer = otel.Tracer("wildgoose/internal/agent")

const defaultMaxIterations = 5

// Agent drives the five-phase pipeline: Understand once, then
// {Plan, Execute, Reflect} up to the iteration bound or until
// reflection reports completion, then a streamed Answer.
type Agent struct {
	name          string
	maxIterations int
	routing       config.LLMRoutingConfig
	provider      llm.Provider
	store         contextstore.Store
	tools         *toolExecutor
	metrics       *telemetry.Metrics
	logger        *log.Logger
}

// Options configures a new Agent. Provider, Registry and Store are
// required; everything else has a default.
type Options struct {
	Config   config.AgentConfig
	Routing  config.LLMRoutingConfig
	Provider llm.Provider
	Registry *tools.Registry
	Store    contextstore.Store
	Metrics  *telemetry.Metrics
	Logger   *log.Logger
}

// New creates an Agent from options.
func New(opts Options) (*Agent, error) {
	if opts.Provider == nil {
		return nil, errors.New("agent: provider is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("agent: tool registry is required")
	}
	if opts.Store == nil {
		return nil, errors.New("agent: context store is required")
	}

	name := opts.Config.Name
	if name == "" {
		name = "WildGoose"
	}
	maxIterations := opts.Config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[AGENT] ", log.LstdFlags)
	}

	return &Agent{
		name:          name,
		maxIterations: maxIterations,
		routing:       opts.Routing,
		provider:      opts.Provider,
		store:         opts.Store,
		metrics:       opts.Metrics,
		logger:        logger,
		tools: &toolExecutor{
			provider:            opts.Provider,
			registry:            opts.Registry,
			store:               opts.Store,
			name:                name,
			smallModel:          opts.Routing.Small,
			taskTimeout:         opts.Config.TaskTimeout,
			emptySelectionFails: opts.Config.EmptySelectionFails,
			logger:              logger,
		},
	}, nil
}

// RunResult is the run's bookkeeping. The answer text itself is not
// buffered here; it flows through the OnAnswerStream callback.
type RunResult struct {
	QueryID     string
	Query       string
	Understand  Understanding
	Plans       []*Plan
	Results     map[string]TaskResult
	Reflections []ReflectionResult
	Iterations  int
	Duration    time.Duration
}

// Run executes the full pipeline for one query. Phase failures are
// fatal and returned; task and tool failures are absorbed into the
// run's results. conversationContext carries prior session messages
// and may be empty.
func (a *Agent) Run(ctx context.Context, query, conversationContext string, cb *Callbacks) (*RunResult, error) {
	started := time.Now()
	queryID := contextstore.HashQuery(query)

	ctx, span := tracer.Start(ctx, "agent.run",
		trace.WithAttributes(attribute.String("query.id", queryID)))
	defer span.End()

	a.logger.Printf("[ORCH] run %s started", queryID)

	run := &RunResult{
		QueryID: queryID,
		Query:   query,
		Results: make(map[string]TaskResult),
	}

	// Understand
	understanding, err := a.runUnderstand(ctx, query, conversationContext, cb)
	if err != nil {
		return nil, a.fail(span, queryID, started, err)
	}
	run.Understand = understanding

	// {Plan, Execute, Reflect} loop
	guidance := ""
	for iteration := 1; ; iteration++ {
		run.Iterations = iteration
		cb.iterationStart(iteration)
		a.logger.Printf("[ORCH] run %s iteration %d", queryID, iteration)

		plan, err := a.runPlan(ctx, query, understanding, run, guidance, cb)
		if err != nil {
			return nil, a.fail(span, queryID, started, err)
		}
		run.Plans = append(run.Plans, plan)
		cb.planCreated(plan, iteration)

		a.runExecute(ctx, plan, query, queryID, understanding, run, cb)

		reflection, err := a.runReflect(ctx, query, understanding, run, iteration, cb)
		if err != nil {
			return nil, a.fail(span, queryID, started, err)
		}
		run.Reflections = append(run.Reflections, reflection)
		cb.reflectionComplete(reflection, iteration)

		if reflection.IsComplete {
			break
		}
		guidance = guidanceFrom(reflection)
	}

	// Answer
	if err := a.runAnswer(ctx, queryID, query, run, cb); err != nil {
		return nil, a.fail(span, queryID, started, err)
	}

	run.Duration = time.Since(started)
	span.SetAttributes(attribute.Int("run.iterations", run.Iterations))
	span.SetStatus(codes.Ok, "completed")
	if a.metrics != nil {
		a.metrics.RunCompleted(run.Duration, run.Iterations)
	}
	a.logger.Printf("[ORCH] run %s completed in %v (%d iterations)", queryID, run.Duration, run.Iterations)
	return run, nil
}

func (a *Agent) fail(span trace.Span, queryID string, started time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if a.metrics != nil {
		a.metrics.RunFailed(time.Since(started))
	}
	a.logger.Printf("[ORCH] run %s failed: %v", queryID, err)
	return err
}

func (a *Agent) runUnderstand(ctx context.Context, query, conversationContext string, cb *Callbacks) (Understanding, error) {
	ctx, span := tracer.Start(ctx, "agent.understand")
	defer span.End()
	defer a.timePhase(PhaseUnderstand)()

	cb.phaseStart(PhaseUnderstand)
	u, err := a.understand(ctx, UnderstandInput{Query: query, ConversationContext: conversationContext})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Understanding{}, err
	}
	cb.understandingComplete(u)
	cb.phaseComplete(PhaseUnderstand)
	return u, nil
}

func (a *Agent) runPlan(ctx context.Context, query string, understanding Understanding, run *RunResult, guidance string, cb *Callbacks) (*Plan, error) {
	ctx, span := tracer.Start(ctx, "agent.plan")
	defer span.End()
	defer a.timePhase(PhasePlan)()

	cb.phaseStart(PhasePlan)
	plan, err := a.plan(ctx, PlanInput{
		Query:                  query,
		Understanding:          understanding,
		PriorPlans:             run.Plans,
		PriorResults:           run.Results,
		GuidanceFromReflection: guidance,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("plan.tasks", len(plan.Tasks)))
	cb.phaseComplete(PhasePlan)
	return plan, nil
}

// runExecute runs the plan and merges its results additively: new keys
// only, an existing task's result is never overwritten.
func (a *Agent) runExecute(ctx context.Context, plan *Plan, query, queryID string, understanding Understanding, run *RunResult, cb *Callbacks) {
	ctx, span := tracer.Start(ctx, "agent.execute")
	defer span.End()
	defer a.timePhase(PhaseExecute)()

	cb.phaseStart(PhaseExecute)
	planResults := a.executeTasks(ctx, plan, query, queryID, understanding, run.Results, cb)
	for id, r := range planResults {
		if _, exists := run.Results[id]; !exists {
			run.Results[id] = r
		}
	}
	cb.phaseComplete(PhaseExecute)
}

func (a *Agent) runReflect(ctx context.Context, query string, understanding Understanding, run *RunResult, iteration int, cb *Callbacks) (ReflectionResult, error) {
	ctx, span := tracer.Start(ctx, "agent.reflect")
	defer span.End()
	defer a.timePhase(PhaseReflect)()

	cb.phaseStart(PhaseReflect)
	reflection, err := a.reflect(ctx, ReflectInput{
		Query:          query,
		Understanding:  understanding,
		CompletedPlans: run.Plans,
		TaskResults:    run.Results,
		Iteration:      iteration,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ReflectionResult{}, err
	}
	cb.phaseComplete(PhaseReflect)
	return reflection, nil
}

func (a *Agent) runAnswer(ctx context.Context, queryID, query string, run *RunResult, cb *Callbacks) error {
	ctx, span := tracer.Start(ctx, "agent.answer")
	defer span.End()
	defer a.timePhase(PhaseAnswer)()

	cb.phaseStart(PhaseAnswer)
	err := a.answer(ctx, queryID, AnswerInput{
		Query:          query,
		CompletedPlans: run.Plans,
		TaskResults:    run.Results,
	}, cb)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	cb.phaseComplete(PhaseAnswer)
	return nil
}

// timePhase records the phase duration metric when metrics are wired.
func (a *Agent) timePhase(p Phase) func() {
	if a.metrics == nil {
		return func() {}
	}
	started := time.Now()
	return func() { a.metrics.PhaseObserved(string(p), time.Since(started)) }
}

// MaxIterations exposes the configured iteration bound.
func (a *Agent) MaxIterations() int { return a.maxIterations }

// Describe summarizes the agent for health/info endpoints.
func (a *Agent) Describe() string {
	return fmt.Sprintf("%s (max %d iterations, small=%s large=%s)", a.name, a.maxIterations, a.routing.Small, a.routing.Large)
}
