// Package metrics holds the Prometheus collectors of the title pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_titler"

// Outcomes of a single model resolution attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Results of a title update trigger.
const (
	ResultUpdated      = "updated"
	ResultSubSession   = "sub_session"
	ResultBelowThresh  = "below_threshold"
	ResultNoTurns      = "no_turns"
	ResultNoModel      = "no_model"
	ResultFailed       = "failed"
	ResultDropped      = "dropped"
	ResultApplyFailed  = "apply_failed"
	ResultNoticeFailed = "notice_failed"
)

var (
	// IdleEvents counts idle notifications accepted by the coordinator.
	IdleEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idle_events_total",
		Help:      "Idle notifications received.",
	})

	// TitleUpdates counts idle triggers by how they ended.
	TitleUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "title_updates_total",
		Help:      "Title update triggers by result.",
	}, []string{"result"})

	// ModelResolutions counts model resolution attempts during selection.
	ModelResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_resolutions_total",
		Help:      "Model resolution attempts by provider, selection stage and outcome.",
	}, []string{"provider", "stage", "outcome"})

	// Selections counts successful selections by source (config or fallback).
	Selections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_selections_total",
		Help:      "Successful model selections by source.",
	}, []string{"source"})

	// PipelineDuration observes complete title pipeline runs.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of title pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
