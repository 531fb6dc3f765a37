package version

import (
	"fmt"
	"strings"

	"github.com/consensus-shipyard/ipc-checkpointer/command/helper"
)

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Branch    string `json:"branch"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func (r *VersionResult) GetOutput() string {
	var sb strings.Builder

	sb.WriteString("\n[VERSION INFO]\n")
	sb.WriteString(helper.FormatKV([]string{
		"Release version|" + r.Version,
		"Git branch|" + r.Branch,
		"Commit hash|" + r.Commit,
		"Build time|" + r.BuildTime,
		fmt.Sprintf("Go|%s (%s)", r.GoVersion, r.Platform),
	}))

	return sb.String()
}
