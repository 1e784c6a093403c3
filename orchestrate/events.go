package orchestrate

import (
	"encoding/json"
	"fmt"
)

// Listener receives every Event the orchestrator emits as it runs. The
// default listener (below) renders them via logrus; the textual
// progress/log renderer itself is treated as an external collaborator, not
// core logic — a caller may substitute any Listener it wants, including one
// that writes to a different format or forwards events elsewhere.
type Listener func(fmt.Stringer)

// jsonString renders an event as {"<Go type name>": {...fields}}, making
// every event self-describing in a log stream without a separate type tag
// field to keep in sync.
func jsonString(v interface{}) string {
	b, err := json.Marshal(map[string]interface{}{fmt.Sprintf("%T", v): v})
	if err != nil {
		return fmt.Sprintf("%T: <marshal error: %v>", v, err)
	}
	return string(b)
}

// EventStageStarted marks the beginning of one of the three sequential
// stages (Release, Index, Archive) for the whole run.
type EventStageStarted struct {
	Stage string
}

func (e EventStageStarted) String() string { return jsonString(e) }

// EventRepositoryStageDone reports that one repository finished one stage,
// success or failure.
type EventRepositoryStageDone struct {
	Repository string
	Stage      string
	Err        string `json:",omitempty"`
}

func (e EventRepositoryStageDone) String() string { return jsonString(e) }

// EventArtifactFetched reports one artifact successfully fetched and
// promoted.
type EventArtifactFetched struct {
	Repository string
	Path       string
	Bytes      int64
	Reused     bool
}

func (e EventArtifactFetched) String() string { return jsonString(e) }

// EventArtifactFailed reports one artifact's terminal failure, carrying
// exactly the tuple §7 requires in every failure log line.
type EventArtifactFailed struct {
	Repository string
	Path       string
	Kind       string
	Attempt    int
	Err        string
}

func (e EventArtifactFailed) String() string { return jsonString(e) }

// EventRepositoryFailed marks a whole repository as failed for the run;
// its GC is skipped (§4.F safety rule).
type EventRepositoryFailed struct {
	Repository string
	Reason     string
}

func (e EventRepositoryFailed) String() string { return jsonString(e) }

// EventCleanupPlanned reports the GC plan computed for one repository.
type EventCleanupPlanned struct {
	Repository string
	Mode       string
	Files      int
	Bytes      int64
}

func (e EventCleanupPlanned) String() string { return jsonString(e) }

// EventRunSummary is emitted once at the very end of a run with run-wide
// totals. The default listener logs it; independently of the listener,
// Run.Execute writes the same totals to var/<run-timestamp>.state.
type EventRunSummary struct {
	Fetched    int
	Reused     int
	Failed     int
	Deleted    int
	BytesMoved int64
	Status     string
}

func (e EventRunSummary) String() string { return jsonString(e) }
