package orchestrate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestEventStringsAreSelfDescribingJSON(t *testing.T) {
	ev := EventArtifactFetched{Repository: "archive.ubuntu.com", Path: "pool/main/c/curl/curl.deb", Bytes: 1024}
	s := ev.String()
	if !strings.Contains(s, "EventArtifactFetched") {
		t.Errorf("expected type name in event string, got %q", s)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		t.Fatalf("event string is not valid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Errorf("expected exactly one top-level key, got %d", len(decoded))
	}
}

func TestDefaultListenerHandlesEveryEventType(t *testing.T) {
	events := []fmt.Stringer{
		EventStageStarted{Stage: "index"},
		EventRepositoryStageDone{Repository: "r", Stage: "index", Err: "boom"},
		EventArtifactFetched{Repository: "r", Path: "p", Bytes: 1},
		EventArtifactFailed{Repository: "r", Path: "p", Kind: "network", Attempt: 1, Err: "boom"},
		EventRepositoryFailed{Repository: "r", Reason: "boom"},
		EventCleanupPlanned{Repository: "r", Mode: "auto", Files: 1, Bytes: 1},
		EventRunSummary{Fetched: 1, Status: "success"},
	}
	listener := DefaultListener(discardLogger())
	for _, e := range events {
		listener(e)
	}
}
