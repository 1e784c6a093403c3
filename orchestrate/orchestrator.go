// Package orchestrate drives the run-lifecycle state machine described in
// SPEC_FULL.md §4.G: lock, schedule metadata → indices → archives,
// finalize, invoke GC, release lock. The configuration is loaded by the
// caller (config.Load) and handed to NewRun. It is the only package that
// knows the shape of a whole run; every other package is a pure component
// it calls into.
package orchestrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/radawson/apt-mirror/apt"
	"github.com/radawson/apt-mirror/config"
	"github.com/radawson/apt-mirror/fetch"
	"github.com/radawson/apt-mirror/signature"
)

// Exit codes, per §6.
const (
	ExitSuccess            = 0
	ExitConfigError        = 1
	ExitLockContention     = 2
	ExitNetworkOrVerifyErr = 3
	ExitSignatureFailure   = 4
)

// Run executes one full mirror run against cfg and returns the process
// exit code §6 specifies.
type Run struct {
	cfg      *config.Config
	log      *logrus.Logger
	listener Listener
	verifier signature.Verifier
}

// NewRun constructs a Run. verifier is consulted only when cfg.VerifyGPG is
// set; pass a *signature.Fake in tests.
func NewRun(cfg *config.Config, log *logrus.Logger, listener Listener, verifier signature.Verifier) *Run {
	if listener == nil {
		listener = DefaultListener(log)
	}
	return &Run{cfg: cfg, log: log, listener: listener, verifier: verifier}
}

// repoState accumulates one repository's per-run outcome across stages.
type repoState struct {
	repo     *config.Repository
	release  *apt.Release
	failed   bool
	failure  string
	releaseBody string // raw (already designarmored) Release text, for skel staging
	releaseRaw  []byte // bytes actually promoted as InRelease/Release
	indices  []indexFetch
	archives map[string]*archiveFetch // keyed by apt.Artifact.Key()
	tempPaths map[string]string // host-relative path -> staged temp file, consumed by promoteMetadata
	metaPrefix string // host-relative "<path-prefix>/dists/<suite>", set by runMetaStage
}

type indexFetch struct {
	relPath string // host-relative, e.g. ubuntu/dists/jammy/main/binary-amd64/Packages.xz
	entry   *apt.ReleaseEntry
	isSource bool
}

type archiveFetch struct {
	artifact *apt.Artifact
}

// Execute runs the whole state machine and returns an exit code. It never
// panics on a repository-scoped failure: per §4.G and §7, repository
// failure is scoped and other repositories continue; the run's exit code
// is the worst severity observed.
func (r *Run) Execute(ctx context.Context) int {
	if err := os.MkdirAll(r.cfg.VarPath, 0755); err != nil {
		r.log.WithError(err).Error("creating var directory")
		return ExitConfigError
	}

	lock, err := acquireLock(filepath.Join(r.cfg.VarPath, "apt-mirror.lock"))
	if err != nil {
		if errors.Is(err, ErrLockContention) {
			r.log.Warn("another run active")
			return ExitLockContention
		}
		r.log.WithError(err).Error("acquiring lock")
		return ExitLockContention
	}
	defer releaseLock(lock)

	for _, dir := range []string{r.cfg.MirrorPath, r.cfg.SkelPath, r.cfg.VarPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			r.log.WithError(err).Error("preparing directories")
			return ExitConfigError
		}
	}

	sched, err := fetch.NewScheduler(r.cfg, r.log, r.cfg.VarPath)
	if err != nil {
		r.log.WithError(err).Error("constructing scheduler")
		return ExitConfigError
	}

	states := make([]*repoState, len(r.cfg.Repositories))
	for i, repo := range r.cfg.Repositories {
		states[i] = &repoState{repo: repo, archives: map[string]*archiveFetch{}}
	}

	r.listener(EventStageStarted{Stage: "release"})
	worstExit := ExitSuccess
	for _, st := range states {
		if err := r.runMetaStage(ctx, sched, st); err != nil {
			st.failed = true
			st.failure = err.Error()
			code := ExitNetworkOrVerifyErr
			if isSignatureErr(err) {
				code = ExitSignatureFailure
			}
			worstExit = worse(worstExit, code)
			r.listener(EventRepositoryFailed{Repository: st.repo.BaseURL(), Reason: err.Error()})
		}
	}

	r.listener(EventStageStarted{Stage: "index"})
	for _, st := range states {
		if st.failed {
			continue
		}
		if err := r.runIndexStage(ctx, sched, st); err != nil {
			st.failed = true
			st.failure = err.Error()
			worstExit = worse(worstExit, ExitNetworkOrVerifyErr)
			r.listener(EventRepositoryFailed{Repository: st.repo.BaseURL(), Reason: err.Error()})
		}
	}

	r.listener(EventStageStarted{Stage: "archive"})
	summary := EventRunSummary{}
	if !r.cfg.DryRun {
		if err := r.runArchiveStage(ctx, sched, states, &summary); err != nil {
			worstExit = worse(worstExit, ExitNetworkOrVerifyErr)
		}
	}

	if err := r.promoteMetadata(states); err != nil {
		r.log.WithError(err).Error("promoting metadata")
		worstExit = worse(worstExit, ExitNetworkOrVerifyErr)
	}

	if err := r.runCleanupGroups(states, &summary); err != nil {
		r.log.WithError(err).Warn("cleanup failed")
	}

	if r.cfg.RunPostMirror {
		r.runPostHook()
	}

	if worstExit == ExitSuccess {
		summary.Status = "success"
	} else {
		summary.Status = "failed"
	}
	r.listener(summary)
	r.persistRunJournal(summary)

	return worstExit
}

func worse(a, b int) int {
	if b > a {
		return b
	}
	return a
}

func isSignatureErr(err error) bool {
	return strings.Contains(err.Error(), "signature")
}

// runPostHook spawns the configured script with the run's paths in its
// environment; per §4.G its exit code never affects the run's own status.
func (r *Run) runPostHook() {
	if r.cfg.PostMirrorScript == "" {
		return
	}
	if _, err := os.Stat(r.cfg.PostMirrorScript); err != nil {
		return
	}
	env := append(os.Environ(),
		"APT_MIRROR_BASE="+r.cfg.BasePath,
		"APT_MIRROR_PATH="+r.cfg.MirrorPath,
	)
	cmd := execCommand(r.cfg.PostMirrorScript)
	cmd.Env = env
	if err := cmd.Run(); err != nil {
		r.log.WithError(err).Warn("postmirror script exited non-zero")
	}
}

func (r *Run) persistRunJournal(summary EventRunSummary) {
	name := time.Now().Format("20060102_150405") + ".state"
	path := filepath.Join(r.cfg.VarPath, name)
	if err := writeJournal(path, summary); err != nil {
		r.log.WithError(err).Warn("writing run journal")
	}
}
