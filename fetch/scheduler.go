package fetch

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/radawson/apt-mirror/apt"
	"github.com/radawson/apt-mirror/config"
	"github.com/radawson/apt-mirror/verify"
)

// Request is one artifact to fetch and the URL to get it from. Where the
// verified bytes are promoted to is decided by the caller.
type Request struct {
	Artifact *apt.Artifact
	URL      string

	// AllowMissing marks a 404 as "skip, not fatal" (§4.D optional
	// translations/Contents files tolerate absence; Release/Packages/
	// archives do not).
	AllowMissing bool

	// IfModifiedSince, when non-zero, is sent as an If-Modified-Since
	// header; a 304 reply then yields Status 304 with no PartialPath. The
	// orchestrator never sets it, so every Release fetch is unconditional.
	IfModifiedSince time.Time
}

// Result reports the outcome of one Request.
type Result struct {
	Request     *Request
	Status      int // 200, 206 (resumed), 304, or 404 (only when AllowMissing)
	PartialPath string // verified temp file ready for promotion; "" on 304/404/error
	Err         error
}

// Scheduler runs requests under a bounded worker pool with retry/backoff,
// range-resume, and a shared rate limiter — the engineering core of §4.C.
type Scheduler struct {
	client  *http.Client
	sem     chan struct{}
	limiter *rate.Limiter
	cfg     *config.Config
	log     *logrus.Logger
	tempDir string
}

// NewScheduler constructs a Scheduler bound by cfg.Nthreads concurrent
// requests and cfg.LimitRate aggregate bytes/sec.
func NewScheduler(cfg *config.Config, log *logrus.Logger, tempDir string) (*Scheduler, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		client:  client,
		sem:     make(chan struct{}, cfg.Nthreads),
		limiter: newLimiter(cfg.LimitRate),
		cfg:     cfg,
		log:     log,
		tempDir: tempDir,
	}, nil
}

// Run fetches every request concurrently (bounded by Nthreads), in no
// particular order, and returns one Result per Request at the same index
// as that Request in requests.
func (s *Scheduler) Run(ctx context.Context, requests []*Request) ([]*Result, error) {
	results := make([]*Result, len(requests))
	g, ctx := errgroup.WithContext(ctx)

	for i, req := range requests {
		i, req := i, req
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		g.Go(func() error {
			defer func() { <-s.sem }()
			r := s.fetchOne(ctx, req)
			results[i] = r
			return nil // artifact-level errors are carried in Result, not failed group-wide
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// FetchOne runs a single request synchronously, still subject to the same
// concurrency semaphore as batched Run calls. Used by the orchestrator for
// the top-level Release fetch, which must complete before any index
// request for its repository is issued (§5 ordering guarantee).
func (s *Scheduler) FetchOne(ctx context.Context, req *Request) *Result {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return &Result{Request: req, Err: ctx.Err()}
	}
	defer func() { <-s.sem }()
	return s.fetchOne(ctx, req)
}

// fetchOne runs the full per-request protocol of §4.C: resume, retry with
// exponential backoff plus jitter, and checksum verification via the
// verify package. Grounded on the retry/backoff shape of the
// aptutil/mirrorctl "dlResult" pattern, adapted to use
// cenkalti/backoff/v4's ExponentialBackOff instead of a hand-rolled
// time.Sleep(1<<n) loop, since the retry delay formula (§4.C: retry_delay
// * 2^(n-1) seconds, ±20% jitter) is exactly backoff.ExponentialBackOff's
// contract when seeded with InitialInterval=retry_delay and
// RandomizationFactor=0.2.
func (s *Scheduler) fetchOne(ctx context.Context, req *Request) *Result {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.RetryDelay
	bo.RandomizationFactor = 0.2
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0 // bounded by RetryAttempts below, not wall-clock

	result := &Result{Request: req}
	var partialPath string // survives across attempts for Range resume

	attempt := 0
	for {
		attempt++
		select {
		case <-ctx.Done():
			cleanupPartial(partialPath)
			result.Err = ctx.Err()
			return result
		default:
		}

		status, tmp, err := s.attempt(ctx, req, partialPath)
		if err == nil {
			result.Status = status
			result.PartialPath = tmp
			return result
		}

		var mismatch *verify.ErrMismatch
		if errors.As(err, &mismatch) {
			// §7: checksum/size mismatch discards the partial and
			// restarts from zero, it does not resume.
			cleanupPartial(partialPath)
			partialPath = ""
		} else if p, ok := partialPathFromErr(err); ok {
			// network error mid-transfer: keep the partial so the
			// next attempt can Range-resume from its current size.
			partialPath = p
		}

		retryable := errors.As(err, &mismatch) || isRetryableNetErr(err)
		if !retryable || attempt > s.cfg.RetryAttempts {
			cleanupPartial(partialPath)
			result.Err = err
			return result
		}

		delay := bo.NextBackOff()
		s.log.WithFields(logrus.Fields{
			"path":    req.Artifact.RelativePath,
			"attempt": attempt,
			"err":     err,
		}).Warn("retrying download")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			cleanupPartial(partialPath)
			result.Err = ctx.Err()
			return result
		}
	}
}

// partialErr wraps an error that occurred after bytes had already been
// written to a .partial file, so fetchOne can resume from it instead of
// discarding it.
type partialErr struct {
	path string
	err  error
}

func (e *partialErr) Error() string { return e.err.Error() }
func (e *partialErr) Unwrap() error { return e.err }

func partialPathFromErr(err error) (string, bool) {
	var pe *partialErr
	if errors.As(err, &pe) {
		return pe.path, true
	}
	return "", false
}

func cleanupPartial(path string) {
	if path != "" {
		os.Remove(path)
	}
}

// attempt issues a single HTTP request, resuming from an existing
// .partial's size via Range if one survived a prior attempt (§4.C bullet
// 1). Returns the verified temp file path on 200/206, or ("", nil) on
// not-modified/missing-and-allowed, or an error classified by the caller as
// retryable or terminal.
func (s *Scheduler) attempt(ctx context.Context, req *Request, existingPartial string) (int, string, error) {
	var resumeFrom int64
	if existingPartial != "" && s.cfg.ResumePartialDownloads {
		if fi, err := os.Stat(existingPartial); err == nil {
			resumeFrom = fi.Size()
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, "", backoffPermanent(err)
	}
	httpReq.Header = newRequestHeaders()

	if resumeFrom > 0 {
		httpReq.Header.Set("Range", "bytes="+strconv.FormatInt(resumeFrom, 10)+"-")
	}
	if !req.IfModifiedSince.IsZero() {
		httpReq.Header.Set("If-Modified-Since", req.IfModifiedSince.UTC().Format(http.TimeFormat))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return 0, "", err // network error: retryable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return resp.StatusCode, "", nil
	case http.StatusNotFound:
		if req.AllowMissing {
			return resp.StatusCode, "", nil
		}
		return resp.StatusCode, "", backoffPermanent(errors.Errorf("404 for %s", req.URL))
	case http.StatusUnauthorized, http.StatusForbidden:
		return resp.StatusCode, "", backoffPermanent(errors.Errorf("status %d for %s", resp.StatusCode, req.URL))
	case http.StatusRequestedRangeNotSatisfiable:
		// §4.C bullet 1: treat as complete-or-mismatch and restart from
		// zero.
		cleanupPartial(existingPartial)
		return resp.StatusCode, "", errors.New("range not satisfiable, restarting")
	case http.StatusOK, http.StatusPartialContent:
		// fall through to body handling
	default:
		if resp.StatusCode >= 500 {
			return resp.StatusCode, "", errors.Errorf("status %d for %s", resp.StatusCode, req.URL)
		}
		return resp.StatusCode, "", backoffPermanent(errors.Errorf("status %d for %s", resp.StatusCode, req.URL))
	}

	resuming := resp.StatusCode == http.StatusPartialContent && resumeFrom > 0
	tmp, tmpPath, err := s.openPartial(existingPartial, resuming)
	if err != nil {
		return 0, "", backoffPermanent(err)
	}

	body := limitReader(ctx, resp.Body, s.limiter)

	// Bytes are written raw here; verification runs as a separate full-file
	// pass below (verify.VerifyFile) so a Range-resumed transfer is checked
	// against its complete content, not just the resumed tail.
	if _, copyErr := io.Copy(tmp, body); copyErr != nil {
		tmp.Close()
		return resp.StatusCode, "", &partialErr{path: tmpPath, err: errors.Wrap(copyErr, "copy")}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return resp.StatusCode, "", &partialErr{path: tmpPath, err: errors.Wrap(err, "fsync partial")}
	}
	if err := tmp.Close(); err != nil {
		return resp.StatusCode, "", &partialErr{path: tmpPath, err: errors.Wrap(err, "close partial")}
	}

	if err := verify.VerifyFile(tmpPath, req.Artifact.ByteSize, req.Artifact.Hashes); err != nil {
		cleanupPartial(tmpPath)
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, tmpPath, nil
}

// openPartial opens existingPartial for append-resume, or creates a fresh
// temp file when starting from zero.
func (s *Scheduler) openPartial(existingPartial string, resuming bool) (*os.File, string, error) {
	if resuming && existingPartial != "" {
		f, err := os.OpenFile(existingPartial, os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			return f, existingPartial, nil
		}
		// fall through to a fresh file if the partial vanished
	}
	if existingPartial != "" {
		os.Remove(existingPartial)
	}
	f, err := os.CreateTemp(s.tempDir, "apt-mirror-*.partial")
	if err != nil {
		return nil, "", err
	}
	return f, f.Name(), nil
}

// backoffPermanent marks err as non-retryable for callers that inspect it
// via errors.As, matching cenkalti/backoff's PermanentError convention
// without pulling the retry loop itself into that library (ours is driven
// explicitly so RetryAttempts and the §7 error table's per-kind policy stay
// visible in one place).
func backoffPermanent(err error) error {
	return &backoff.PermanentError{Err: err}
}

func isRetryableNetErr(err error) bool {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return false
	}
	return true
}

// jitter returns base shifted by a random amount within ±20%. Nothing in
// this package calls it: the retry loop's jitter is applied by
// backoff.ExponentialBackOff's RandomizationFactor above.
func jitter(base time.Duration) time.Duration {
	delta := float64(base) * 0.2
	return base + time.Duration((rand.Float64()*2-1)*delta)
}
