package command

import (
	"encoding/json"
)

// JSONOutput renders results as a single json document, errors as {"error": "..."}
type JSONOutput struct {
	commonOutputFormatter
}

func (jo *JSONOutput) WriteOutput() {
	jo.write(jo.getErrorOutput, jo.getCommandOutput)
}

func (jo *JSONOutput) getErrorOutput() string {
	return toJSON(struct {
		Err string `json:"error"`
	}{
		Err: jo.errorOutput.Error(),
	})
}

func (jo *JSONOutput) getCommandOutput() string {
	return toJSON(jo.commandOutput)
}

func toJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return toJSON(struct {
			Err string `json:"error"`
		}{
			Err: "failed to encode output: " + err.Error(),
		})
	}

	return string(raw)
}
