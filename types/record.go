package types

import "time"

// SubmissionRecord describes a checkpoint submission confirmed by the target chain
type SubmissionRecord struct {
	Direction   Direction     `json:"direction"`
	Child       string        `json:"child"`
	Parent      string        `json:"parent"`
	Epoch       Epoch         `json:"epoch"`
	Validator   Address       `json:"validator"`
	Height      Epoch         `json:"height"`
	Ref         SubmissionRef `json:"ref"`
	SubmittedAt time.Time     `json:"submitted_at"`
}
