package evallog

import (
	"fmt"

	"github.com/goccy/go-json"
)

// HeaderEntry is the archive entry holding run-level metadata.
const HeaderEntry = "header.json"

// Header is the subset of an archive's run metadata shown in summaries.
type Header struct {
	Eval    EvalSpec  `json:"eval"`
	Dataset Dataset   `json:"dataset"`
	Config  RunConfig `json:"config"`
	Status  string    `json:"status"`
}

// EvalSpec identifies the evaluation run.
type EvalSpec struct {
	RunID string `json:"run_id"`
	Task  string `json:"task"`
	Model string `json:"model"`
}

// Dataset describes the dataset the run drew samples from.
type Dataset struct {
	Name    string `json:"name"`
	Samples int    `json:"samples"`
}

// RunConfig holds the run settings relevant to sample layout.
type RunConfig struct {
	Epochs       int `json:"epochs"`
	MessageLimit int `json:"message_limit"`
}

// DecodeHeader parses the contents of a header.json entry.
func DecodeHeader(data []byte) (*Header, error) {
	var header Header

	err := json.Unmarshal(data, &header)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", HeaderEntry, err)
	}

	return &header, nil
}
