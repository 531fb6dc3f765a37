package types

// Epoch is a chain height. It is used both as the current height of a chain
// and as the height a checkpoint is due at.
type Epoch int64

// SubmissionEpoch returns the next height a checkpoint is due at
func SubmissionEpoch(lastExecuted, period Epoch) Epoch {
	return lastExecuted + period
}
