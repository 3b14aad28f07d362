package sim

import (
	"encoding/json"
	"time"

	"github.com/khryptorgraphics/dagsim/pkg/dag"
)

// StageReport is the per-stage breakdown supplementing the required
// {utilization, runtime} line (SPEC_FULL's "deterministic run summary").
type StageReport struct {
	StageID        int     `json:"stage_id"`
	CompletedTasks int     `json:"completed_tasks"`
	Recomputations int     `json:"recomputations"`
	OutputBytes    int64   `json:"output_bytes"`
	SplitWeights   []float64 `json:"split_weights,omitempty"`
}

// Report is the final report of one run. The CLI prints only its core
// {utilization, runtime} object to stdout (see MarshalCore); the full
// report is printed to stderr in verbose mode.
type Report struct {
	RunID       string        `json:"run_id"`
	Utilization float64       `json:"utilization"`
	Runtime     float64       `json:"runtime"`
	Stages      []StageReport `json:"stages,omitempty"`
}

func buildReport(runID string, runtime time.Duration, utilization float64, g *dag.DAG, recomputed map[int]int) Report {
	stages := make([]StageReport, len(g.Stages))
	for i, st := range g.Stages {
		completed := 0
		for _, t := range st.Tasks {
			if t.Status == dag.TaskCompleted {
				completed++
			}
		}
		sr := StageReport{
			StageID:        st.ID,
			CompletedTasks: completed,
			Recomputations: recomputed[st.ID],
		}
		if st.Output != nil {
			sr.OutputBytes = st.Output.SizeBytes
			sr.SplitWeights = st.Output.Splits
		}
		stages[i] = sr
	}
	return Report{
		RunID:       runID,
		Utilization: utilization,
		Runtime:     runtime.Seconds(),
		Stages:      stages,
	}
}

// MarshalCore renders just the {utilization, runtime} object required on
// the final stdout line, without the supplemented stage breakdown —
// callers that want the full report use json.Marshal(Report) directly.
func (r Report) MarshalCore() ([]byte, error) {
	return json.Marshal(struct {
		Utilization float64 `json:"utilization"`
		Runtime     float64 `json:"runtime"`
	}{r.Utilization, r.Runtime})
}
