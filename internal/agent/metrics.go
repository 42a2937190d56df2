package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Metrics names.
	MetricNameQuestionsGenerated = "curio_agent_questions_generated_total"
	MetricNameDuplicateQuestions = "curio_agent_duplicate_questions_total"
	MetricNameCyclesSkipped      = "curio_agent_cycles_skipped_total"
	MetricNameQuestionsProcessed = "curio_agent_questions_processed_total"
	MetricNameAlertsSent         = "curio_agent_alerts_sent_total"
	MetricNameTaskFires          = "curio_agent_task_fires_total"
	MetricNameQueueDepth         = "curio_agent_queue_depth"
	MetricNameErrors             = "curio_agent_errors_total"
	MetricNameBuildInfo          = "curio_agent_build_info"

	// Labels.
	MetricLabelErrorType = "error_type"
	MetricLabelTaskType  = "task_type"
	MetricLabelTaskName  = "task_name"
	MetricLabelVersion   = "version"
	MetricLabelCommit    = "commit"
	MetricLabelDate      = "date"

	// Error types.
	MetricErrorTypeKnowledge = "load_knowledge"
	MetricErrorTypeStore     = "question_store"
	MetricErrorTypeGenerate  = "generate_question"
	MetricErrorTypeExecute   = "execute_question"
	MetricErrorTypeDecide    = "alert_decision"
)

var (
	MetricQuestionsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameQuestionsGenerated,
			Help: "Number of exploratory questions generated and saved",
		},
	)

	MetricDuplicateQuestions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameDuplicateQuestions,
			Help: "Number of generated questions discarded as duplicates",
		},
	)

	MetricCyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameCyclesSkipped,
			Help: "Number of exploratory cycles skipped due to queue backlog",
		},
	)

	MetricQuestionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameQuestionsProcessed,
			Help: "Number of questions answered by the backend",
		},
		[]string{MetricLabelTaskType},
	)

	MetricAlertsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameAlertsSent,
			Help: "Number of alerts delivered",
		},
	)

	MetricTaskFires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameTaskFires,
			Help: "Number of times each scheduled task fired",
		},
		[]string{MetricLabelTaskName},
	)

	MetricQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameQueueDepth,
			Help: "Number of questions waiting in the execution queue",
		},
	)

	MetricErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameErrors,
			Help: "Number of errors encountered",
		},
		[]string{MetricLabelErrorType},
	)

	MetricBuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricNameBuildInfo,
			Help: "Agent build info",
		},
		[]string{MetricLabelVersion, MetricLabelCommit, MetricLabelDate},
	)
)
