package orchestrate

import (
	"os"

	"github.com/pkg/errors"
	"go.yaml.in/yaml/v3"
)

// runJournal is the optional var/<run-timestamp>.state record (§3 local
// layout). Nothing reads it back on the next run — re-runs reconstruct
// state by observing the filesystem and re-parsing Release, per §6 — it
// exists purely as an operator-facing audit trail, serialized with the
// YAML library the teacher repository already depended on for its own
// declarative configuration, repurposed here since this mirror engine's
// actual configuration format is the fixed mirror.list grammar, not YAML.
type runJournal struct {
	Fetched    int   `yaml:"fetched"`
	Reused     int   `yaml:"reused"`
	Failed     int   `yaml:"failed"`
	Deleted    int   `yaml:"deleted"`
	BytesMoved int64 `yaml:"bytes_moved"`
	Status     string `yaml:"status"`
}

func writeJournal(path string, summary EventRunSummary) error {
	j := runJournal{
		Fetched:    summary.Fetched,
		Reused:     summary.Reused,
		Failed:     summary.Failed,
		Deleted:    summary.Deleted,
		BytesMoved: summary.BytesMoved,
		Status:     summary.Status,
	}
	b, err := yaml.Marshal(j)
	if err != nil {
		return errors.Wrap(err, "marshaling run journal")
	}
	return os.WriteFile(path, b, 0644)
}
