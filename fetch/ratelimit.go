package fetch

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// limitedReader paces Read calls through a shared token bucket so the
// aggregate throughput across every concurrent download stays at or below
// limit_rate (§4.C bullet 3, §8 property 8). A nil limiter is a no-op.
type limitedReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
	burst   int
}

// readChunk bounds a single Read so WaitN never blocks longer than
// necessary for one slice, keeping the rolling-window bound of §8 property
// 8 tight.
const readChunk = 32 * 1024

// newLimiter builds a token bucket sized for bytesPerSec, or nil when
// unlimited. Burst is at least one read-chunk's worth of tokens so
// limitedReader.Read, which never reads more than readChunk bytes at a
// time, can never ask WaitN for more than the bucket can ever hold — below
// readChunk bytes/sec, a burst sized to bytesPerSec alone would make every
// Read's WaitN(n) fail outright with "exceeds burst".
func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(bytesPerSec)
	if burst < readChunk {
		burst = readChunk
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

func limitReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &limitedReader{r: r, limiter: limiter, ctx: ctx, burst: limiter.Burst()}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	chunk := readChunk
	if l.burst < chunk {
		chunk = l.burst
	}
	if len(p) > chunk {
		p = p[:chunk]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.limiter.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
