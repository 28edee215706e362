// Package metrics defines the Prometheus collectors exported by codi.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	llmRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codi_llm_requests_total",
			Help: "Completion requests sent to the model provider",
		},
		[]string{"provider", "model", "outcome"},
	)

	llmTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codi_llm_tokens_total",
			Help: "Tokens consumed by completion requests",
		},
		[]string{"provider", "model", "kind"},
	)

	llmLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codi_llm_request_duration_seconds",
			Help:    "Latency of completion requests",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "model"},
	)

	tasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codi_tasks_total",
			Help: "Tasks processed by the agent",
		},
		[]string{"type", "source", "outcome"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codi_http_requests_total",
			Help: "HTTP requests handled by the task service",
		},
		[]string{"route", "code"},
	)

	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codi_http_request_duration_seconds",
			Help:    "Latency of HTTP requests handled by the task service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	slackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codi_slack_events_total",
			Help: "Slack mention events handled by the bot",
		},
		[]string{"outcome"},
	)

	webhookMentions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codi_github_mentions_total",
			Help: "Pull request mentions handled by the GitHub webhook",
		},
		[]string{"outcome"},
	)
)

// RecordCompletion records one completion request.
func RecordCompletion(provider, model string, d time.Duration, promptTokens, completionTokens int64, err error) {
	llmRequests.WithLabelValues(provider, model, outcome(err)).Inc()
	llmLatency.WithLabelValues(provider, model).Observe(d.Seconds())
	if promptTokens > 0 {
		llmTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		llmTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordTask records one processed task.
func RecordTask(taskType, source string, err error) {
	tasks.WithLabelValues(taskType, source, outcome(err)).Inc()
}

// RecordHTTP records one served HTTP request.
func RecordHTTP(route string, code int, d time.Duration) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// RecordSlackEvent records one handled Slack mention.
func RecordSlackEvent(err error) {
	slackEvents.WithLabelValues(outcome(err)).Inc()
}

// RecordWebhookMention records one handled pull request mention.
func RecordWebhookMention(err error) {
	webhookMentions.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
