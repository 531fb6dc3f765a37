package history

import (
	"bytes"
	"fmt"
	"time"

	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
	"github.com/consensus-shipyard/ipc-checkpointer/types"
)

type HistoryResult struct {
	Records []*types.SubmissionRecord `json:"records"`
}

func (r *HistoryResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[SUBMISSIONS]\n")

	if len(r.Records) == 0 {
		buffer.WriteString("No submissions recorded")

		return buffer.String()
	}

	rows := make([]string, 0, len(r.Records)+1)
	rows = append(rows, "Child|Direction|Epoch|Validator|Height|Ref|Submitted")

	for _, rec := range r.Records {
		rows = append(rows, fmt.Sprintf("%s|%s|%d|%s|%d|%s|%s",
			rec.Child,
			rec.Direction,
			rec.Epoch,
			rec.Validator,
			rec.Height,
			rec.Ref,
			rec.SubmittedAt.UTC().Format(time.RFC3339),
		))
	}

	buffer.WriteString(helper.FormatList(rows))

	return buffer.String()
}
