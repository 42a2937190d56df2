// Package agent wires the scheduler, question generator, execution
// pipeline, alert decision engine and dispatcher into the long-running
// monitoring loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/curiolabs/curio/internal/alert"
	"github.com/curiolabs/curio/internal/config"
	"github.com/curiolabs/curio/internal/knowledge"
	"github.com/curiolabs/curio/internal/pipeline"
	"github.com/curiolabs/curio/internal/scheduler"
)

const (
	defaultBacklogLimit = 10
	defaultRecentLimit  = 10

	exploratoryTaskName = "exploratory"
)

// QAClient answers a natural-language question.
type QAClient interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Decider decides whether a result warrants an alert.
type Decider interface {
	Decide(ctx context.Context, resultText string, mode config.AlertMode, threshold config.Threshold) (bool, string, error)
}

// Dispatcher delivers decided alerts.
type Dispatcher interface {
	Enabled() bool
	Dispatch(ctx context.Context, a alert.Alert) bool
}

// QuestionStore is the persistent ledger of generated questions.
type QuestionStore interface {
	Exists(ctx context.Context, question string) (bool, error)
	Save(ctx context.Context, question string) (bool, error)
	Recent(ctx context.Context, limit int) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// KnowledgeLoader provides the schema and example pairs for generation.
type KnowledgeLoader interface {
	Schema() (*knowledge.Schema, error)
	TrainingPairs() ([]knowledge.TrainingPair, error)
}

// QuestionGenerator produces one novel question per exploratory cycle.
type QuestionGenerator interface {
	Generate(ctx context.Context, schema *knowledge.Schema, examples []knowledge.TrainingPair, recent []string) (string, error)
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	Store     QuestionStore
	Knowledge KnowledgeLoader
	Generator QuestionGenerator
	QA        QAClient
	Decider   Decider
	Alerts    Dispatcher

	Tasks *config.TasksConfig

	StructuredPrefix  string
	ExploratoryPrefix string

	PollInterval time.Duration
	BacklogLimit int
	RecentLimit  int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Store == nil {
		return errors.New("question store is required")
	}
	if c.Knowledge == nil {
		return errors.New("knowledge loader is required")
	}
	if c.Generator == nil {
		return errors.New("question generator is required")
	}
	if c.QA == nil {
		return errors.New("qa client is required")
	}
	if c.Decider == nil {
		return errors.New("decision engine is required")
	}
	if c.Alerts == nil {
		return errors.New("alert dispatcher is required")
	}
	if c.Tasks == nil {
		return errors.New("tasks config is required")
	}
	if c.BacklogLimit == 0 {
		c.BacklogLimit = defaultBacklogLimit
	}
	if c.RecentLimit == 0 {
		c.RecentLimit = defaultRecentLimit
	}
	return nil
}

type Agent struct {
	cfg   *Config
	log   *slog.Logger
	pipe  *pipeline.Pipeline
	sched *scheduler.Scheduler
}

func New(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{cfg: cfg, log: cfg.Logger}

	pipe, err := pipeline.New(&pipeline.Config{
		Logger:  cfg.Logger,
		Process: a.process,
	})
	if err != nil {
		return nil, err
	}
	a.pipe = pipe

	sched, err := scheduler.New(&scheduler.Config{
		Logger:       cfg.Logger,
		Clock:        cfg.Clock,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		return nil, err
	}
	for _, task := range cfg.Tasks.StructuredTasks {
		if err := sched.Add(scheduler.Entry{
			Name:     task.Name,
			Interval: cadenceToDuration(task.CadenceHours),
			Fire: func(ctx context.Context) {
				a.fireStructuredTask(ctx, task)
			},
		}); err != nil {
			return nil, err
		}
	}
	if cfg.Tasks.Curiosity.Enabled {
		if err := sched.Add(scheduler.Entry{
			Name:     exploratoryTaskName,
			Interval: cadenceToDuration(cfg.Tasks.Curiosity.CadenceHours),
			Fire:     a.runExploratoryCycle,
		}); err != nil {
			return nil, err
		}
	}
	a.sched = sched

	return a, nil
}

// Run executes the agent until ctx is cancelled, then drains the
// execution queue and reports session totals.
func (a *Agent) Run(ctx context.Context) error {
	initialCount, err := a.cfg.Store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count stored questions: %w", err)
	}
	a.logStartup(initialCount)
	MetricQueueDepth.Set(0)

	runErr := a.sched.Run(ctx)

	if pending := a.pipe.Pending(); pending > 0 {
		a.log.Info("waiting for remaining queue items", "pending", pending)
	}
	a.pipe.Drain()

	finalCount, err := a.cfg.Store.Count(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("failed to count stored questions: %w", err)
	}
	a.log.Info("session summary",
		"questions_generated_this_session", finalCount-initialCount,
		"questions_total", finalCount,
	)
	return runErr
}

func (a *Agent) logStartup(initialCount int64) {
	a.log.Info("starting monitoring agent",
		"questions_in_database", initialCount,
		"structured_tasks", len(a.cfg.Tasks.StructuredTasks),
		"exploratory_enabled", a.cfg.Tasks.Curiosity.Enabled,
		"alerts_enabled", a.cfg.Alerts.Enabled(),
	)
	for _, task := range a.cfg.Tasks.StructuredTasks {
		a.log.Info("scheduled structured task",
			"task", task.Name,
			"cadence", cadenceDisplay(task.CadenceHours),
			"alert_mode", task.AlertMode,
		)
	}
	if a.cfg.Tasks.Curiosity.Enabled {
		a.log.Info("scheduled exploratory agent",
			"cadence", cadenceDisplay(a.cfg.Tasks.Curiosity.CadenceHours),
			"alert_mode", a.cfg.Tasks.Curiosity.AlertMode,
		)
	}
	if len(a.cfg.Tasks.StructuredTasks) == 0 && !a.cfg.Tasks.Curiosity.Enabled {
		a.log.Warn("no structured tasks and exploratory disabled, nothing to schedule")
	}
}

func (a *Agent) fireStructuredTask(ctx context.Context, task config.Task) {
	MetricTaskFires.WithLabelValues(task.Name).Inc()
	a.log.Info("structured task fired", "task", task.Name, "question", task.Question)

	a.enqueue(ctx, pipeline.Item{
		Question:  task.Question,
		TaskName:  task.Name,
		TaskType:  pipeline.TaskTypeStructured,
		AlertMode: task.AlertMode,
		Threshold: task.AnomalyThreshold,
	})
}

// runExploratoryCycle generates one novel question and enqueues it.
// The generation call runs synchronously on the scheduler goroutine.
func (a *Agent) runExploratoryCycle(ctx context.Context) {
	MetricTaskFires.WithLabelValues(exploratoryTaskName).Inc()

	if pending := a.pipe.Pending(); pending > a.cfg.BacklogLimit {
		a.log.Info("queue backlog too deep, skipping exploratory cycle", "pending", pending)
		MetricCyclesSkipped.Inc()
		return
	}

	schema, err := a.cfg.Knowledge.Schema()
	if err != nil {
		a.log.Error("failed to load schema", "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeKnowledge).Inc()
		return
	}
	examples, err := a.cfg.Knowledge.TrainingPairs()
	if err != nil {
		a.log.Error("failed to load training pairs", "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeKnowledge).Inc()
		return
	}
	recent, err := a.cfg.Store.Recent(ctx, a.cfg.RecentLimit)
	if err != nil {
		a.log.Error("failed to load recent questions", "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeStore).Inc()
		return
	}

	question, err := a.cfg.Generator.Generate(ctx, schema, examples, recent)
	if err != nil {
		a.log.Error("failed to generate question", "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeGenerate).Inc()
		return
	}
	if question == "" {
		a.log.Debug("generator returned no question")
		return
	}

	exists, err := a.cfg.Store.Exists(ctx, question)
	if err != nil {
		a.log.Error("failed to check for duplicate question", "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeStore).Inc()
		return
	}
	if exists {
		a.log.Info("skipping duplicate question", "question", question)
		MetricDuplicateQuestions.Inc()
		return
	}
	saved, err := a.cfg.Store.Save(ctx, question)
	if err != nil {
		a.log.Error("failed to save question", "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeStore).Inc()
		return
	}
	if !saved {
		a.log.Info("question raced an identical save, discarding", "question", question)
		MetricDuplicateQuestions.Inc()
		return
	}

	MetricQuestionsGenerated.Inc()
	a.log.Info("exploratory question generated", "question", question)

	curiosity := a.cfg.Tasks.Curiosity
	a.enqueue(ctx, pipeline.Item{
		Question:  question,
		TaskName:  exploratoryTaskName,
		TaskType:  pipeline.TaskTypeExploratory,
		AlertMode: curiosity.AlertMode,
		Threshold: curiosity.AnomalyThreshold,
	})
}

func (a *Agent) enqueue(ctx context.Context, item pipeline.Item) {
	// Queued items finish even after the run context is cancelled; the
	// shutdown drain waits for them.
	if !a.pipe.Enqueue(context.WithoutCancel(ctx), item) {
		a.log.Warn("queue is draining, dropping item", "task", item.TaskName)
		return
	}
	MetricQueueDepth.Set(float64(a.pipe.Pending()))
}

// process executes one queue item: ask the backend, decide, dispatch.
// Failures are logged and the worker moves on; there are no retries.
func (a *Agent) process(ctx context.Context, item pipeline.Item) {
	MetricQueueDepth.Set(float64(a.pipe.Pending()))

	message := item.Question
	if prefix := a.prefixFor(item.TaskType); prefix != "" {
		message = prefix + ": " + item.Question
	}

	a.log.Info("executing question", "task", item.TaskName, "type", item.TaskType, "question", item.Question)

	result, err := a.cfg.QA.Ask(ctx, message)
	if err != nil {
		a.log.Error("question execution failed", "task", item.TaskName, "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeExecute).Inc()
		return
	}
	MetricQuestionsProcessed.WithLabelValues(string(item.TaskType)).Inc()
	a.log.Info("question answered", "task", item.TaskName, "type", item.TaskType, "result", result)

	should, reason, err := a.cfg.Decider.Decide(ctx, result, item.AlertMode, item.Threshold)
	if err != nil {
		a.log.Warn("alert decision failed, not alerting", "task", item.TaskName, "error", err)
		MetricErrors.WithLabelValues(MetricErrorTypeDecide).Inc()
		return
	}
	if !should {
		return
	}

	a.log.Info("alert raised", "task", item.TaskName, "reason", reason)
	sent := a.cfg.Alerts.Dispatch(ctx, alert.Alert{
		TaskName: item.TaskName,
		TaskType: string(item.TaskType),
		Reason:   reason,
		Question: item.Question,
		Time:     a.cfg.Clock.Now(),
	})
	if sent {
		MetricAlertsSent.Inc()
	}
}

func (a *Agent) prefixFor(taskType pipeline.TaskType) string {
	if taskType == pipeline.TaskTypeExploratory {
		return a.cfg.ExploratoryPrefix
	}
	return a.cfg.StructuredPrefix
}

func cadenceToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// cadenceDisplay renders a cadence the way operators read it.
func cadenceDisplay(hours float64) string {
	switch {
	case hours >= 168:
		return fmt.Sprintf("%.1f weeks", hours/168)
	case hours >= 24:
		return fmt.Sprintf("%.1f days", hours/24)
	default:
		return fmt.Sprintf("%g hours", hours)
	}
}
