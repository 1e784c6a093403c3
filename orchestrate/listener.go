package orchestrate

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DefaultListener renders every Event as a structured logrus line. This is
// the "textual progress/log renderer" SPEC_FULL.md names as an external
// collaborator: swap it for any other Listener without touching Run.
func DefaultListener(log *logrus.Logger) Listener {
	return func(e fmt.Stringer) {
		switch ev := e.(type) {
		case EventStageStarted:
			log.WithField("stage", ev.Stage).Info("stage started")
		case EventArtifactFetched:
			log.WithFields(logrus.Fields{
				"repo": ev.Repository, "path": ev.Path, "bytes": ev.Bytes, "reused": ev.Reused,
			}).Debug("artifact")
		case EventArtifactFailed:
			log.WithFields(logrus.Fields{
				"repo": ev.Repository, "path": ev.Path, "kind": ev.Kind, "attempt": ev.Attempt, "err": ev.Err,
			}).Error("artifact failed")
		case EventRepositoryFailed:
			log.WithFields(logrus.Fields{"repo": ev.Repository, "reason": ev.Reason}).Error("repository failed")
		case EventCleanupPlanned:
			log.WithFields(logrus.Fields{
				"repo": ev.Repository, "mode": ev.Mode, "files": ev.Files, "bytes": ev.Bytes,
			}).Info("cleanup planned")
		case EventRunSummary:
			log.WithFields(logrus.Fields{
				"fetched": ev.Fetched, "reused": ev.Reused, "failed": ev.Failed,
				"deleted": ev.Deleted, "bytes": ev.BytesMoved, "status": ev.Status,
			}).Info("run summary")
		default:
			log.Info(e.String())
		}
	}
}
