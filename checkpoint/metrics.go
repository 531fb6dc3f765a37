package checkpoint

import (
	"time"

	"github.com/armon/go-metrics"

	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

const checkpointMetrics = "checkpoint"

func managerLabels(m CheckpointManager) []metrics.Label {
	return []metrics.Label{
		{Name: "direction", Value: string(m.Direction())},
		{Name: "child", Value: m.Child().ID.String()},
	}
}

// updateEpochMetrics records the epochs observed by one runner iteration
func updateEpochMetrics(m CheckpointManager, lastExecuted, current, next types.Epoch) {
	labels := managerLabels(m)

	metrics.SetGaugeWithLabels([]string{checkpointMetrics, "last_executed_epoch"}, float32(lastExecuted), labels)
	metrics.SetGaugeWithLabels([]string{checkpointMetrics, "current_epoch"}, float32(current), labels)
	metrics.SetGaugeWithLabels([]string{checkpointMetrics, "submission_epoch"}, float32(next), labels)
}

// updateSubmissionMetrics records the outcome and latency of one submission
func updateSubmissionMetrics(m CheckpointManager, start time.Time, err error) {
	labels := managerLabels(m)

	if err != nil {
		metrics.IncrCounterWithLabels([]string{checkpointMetrics, "submission_failures"}, 1, labels)

		return
	}

	metrics.IncrCounterWithLabels([]string{checkpointMetrics, "submissions"}, 1, labels)
	metrics.MeasureSinceWithLabels([]string{checkpointMetrics, "submission_time"}, start, labels)
}
