package validate

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
)

type SubnetResult struct {
	Name        string   `json:"name"`
	ID          string   `json:"id"`
	NetworkType string   `json:"network_type"`
	Accounts    int      `json:"accounts"`
	Directions  []string `json:"directions"`
}

type PairResult struct {
	Pair       string   `json:"pair"`
	Directions []string `json:"directions"`
	Skipped    string   `json:"skipped,omitempty"`
}

type ValidateResult struct {
	Subnets []SubnetResult `json:"subnets"`
	Pairs   []PairResult   `json:"pairs"`
}

func (r *ValidateResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[SUBNETS]\n")

	rows := []string{"Name|ID|Network|Accounts|Checkpoints"}
	for _, s := range r.Subnets {
		rows = append(rows, fmt.Sprintf("%s|%s|%s|%d|%s",
			s.Name, s.ID, s.NetworkType, s.Accounts, strings.Join(s.Directions, ",")))
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n\n[MANAGED PAIRS]\n")

	if len(r.Pairs) == 0 {
		buffer.WriteString("No subnet pair is managed by the configured accounts")

		return buffer.String()
	}

	rows = []string{"Pair|Checkpoints|Skipped"}
	for _, p := range r.Pairs {
		rows = append(rows, fmt.Sprintf("%s|%s|%s", p.Pair, strings.Join(p.Directions, ","), p.Skipped))
	}

	buffer.WriteString(helper.FormatList(rows))

	return buffer.String()
}
