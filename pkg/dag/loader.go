package dag

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/khryptorgraphics/dagsim/pkg/skew"
)

// LoadError wraps any failure encountered while parsing or validating a DAG
// document. The CLI treats this as fail-fast: print and exit 1.
type LoadError struct {
	Stage int // -1 when the error isn't stage-specific
	Msg   string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Stage >= 0 {
		return fmt.Sprintf("dag: stage %d: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("dag: %s: %v", e.Msg, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type rawDistribution struct {
	Kind  string  `json:"kind"`
	Alpha float64 `json:"alpha"`
	Loc   float64 `json:"loc"`
	Scale float64 `json:"scale"`
}

type rawDataSpec struct {
	Size         json.RawMessage  `json:"size"`
	Partitions   int              `json:"partitions"`
	Distribution rawDistribution  `json:"distribution"`
}

type rawShuffle struct {
	Avg float64 `json:"avg"`
}

type rawStats struct {
	Avg     float64     `json:"avg"`
	Shuffle *rawShuffle `json:"shuffle"`
}

type rawStage struct {
	ID         int          `json:"id"`
	Deps       []int        `json:"deps"`
	Status     string       `json:"status"`
	Partitions int          `json:"partitions"`
	Stats      rawStats     `json:"stats"`
	Input      *rawDataSpec `json:"input"`
	Output     *rawDataSpec `json:"output"`
}

// Load parses a topologically-ordered JSON array of stage descriptors into
// a fully populated DAG, precomputing each stage's input/output splits
// matrix with rng as the seeded source of randomness.
func Load(data []byte, rng *rand.Rand) (*DAG, error) {
	var raws []rawStage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &LoadError{Stage: -1, Msg: "invalid JSON", Err: err}
	}
	if len(raws) == 0 {
		return nil, &LoadError{Stage: -1, Msg: "empty DAG", Err: fmt.Errorf("no stages")}
	}

	g := &DAG{Stages: make([]*Stage, len(raws))}

	for i, rs := range raws {
		if rs.ID != i {
			return nil, &LoadError{Stage: i, Msg: "id must equal its array index", Err: fmt.Errorf("id=%d", rs.ID)}
		}
		for _, d := range rs.Deps {
			if d >= rs.ID {
				return nil, &LoadError{Stage: i, Msg: "dep must be strictly less than id", Err: fmt.Errorf("dep=%d", d)}
			}
		}
		if rs.Partitions < 1 {
			return nil, &LoadError{Stage: i, Msg: "partitions must be >= 1", Err: fmt.Errorf("partitions=%d", rs.Partitions)}
		}
		if len(rs.Deps) > 0 && rs.Stats.Shuffle == nil {
			return nil, &LoadError{Stage: i, Msg: "non-source stage missing stats.shuffle", Err: fmt.Errorf("stage has %d deps", len(rs.Deps))}
		}

		stage := &Stage{
			ID:         rs.ID,
			Deps:       append([]int(nil), rs.Deps...),
			Status:     StagePending,
			Partitions: rs.Partitions,
			Stats: StageStats{
				Avg: secondsToDuration(rs.Stats.Avg),
			},
		}
		if rs.Stats.Shuffle != nil {
			stage.Stats.Shuffle = &ShuffleStats{Avg: secondsToDuration(rs.Stats.Shuffle.Avg)}
		}

		var err error
		stage.Input, err = buildDataSpec(rs.Input, rng)
		if err != nil {
			return nil, &LoadError{Stage: i, Msg: "input", Err: err}
		}
		stage.Output, err = buildDataSpec(rs.Output, rng)
		if err != nil {
			return nil, &LoadError{Stage: i, Msg: "output", Err: err}
		}

		stage.Tasks = make([]*Task, rs.Partitions)
		for p := 0; p < rs.Partitions; p++ {
			stage.Tasks[p] = &Task{
				Index:         p,
				Stage:         stage,
				Status:        TaskPending,
				Current:       NoLaunch,
				LaunchedTasks: make(map[int]*LaunchTask),
			}
		}

		g.Stages[i] = stage
	}

	return g, nil
}

func buildDataSpec(raw *rawDataSpec, rng *rand.Rand) (*DataSpec, error) {
	if raw == nil {
		return nil, nil
	}
	size, err := parseSize(raw.Size)
	if err != nil {
		return nil, fmt.Errorf("size: %w", err)
	}
	partitions := raw.Partitions
	if partitions < 1 {
		partitions = 1
	}
	desc := skew.Descriptor{
		Kind:  skew.Kind(raw.Distribution.Kind),
		Alpha: raw.Distribution.Alpha,
		Loc:   raw.Distribution.Loc,
		Scale: raw.Distribution.Scale,
	}
	splits, err := skew.Weights(desc, partitions, rng)
	if err != nil {
		return nil, err
	}
	return &DataSpec{
		SizeBytes:    size,
		Partitions:   partitions,
		Distribution: desc,
		Splits:       splits,
	}, nil
}

// parseSize accepts either a JSON number of bytes or a human-size string
// ("512MB"), using go-humanize for the latter.
func parseSize(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, fmt.Errorf("size must be a number or human-size string: %w", err)
	}
	bytes, err := humanize.ParseBytes(asString)
	if err != nil {
		return 0, fmt.Errorf("invalid human size %q: %w", asString, err)
	}
	return int64(bytes), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
