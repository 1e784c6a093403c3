package fetch

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestNewLimiterUnlimitedWhenZero(t *testing.T) {
	if l := newLimiter(0); l != nil {
		t.Errorf("expected nil limiter for 0 bytes/sec, got %v", l)
	}
}

func TestLimitReaderPassthroughWhenUnlimited(t *testing.T) {
	r := limitReader(context.Background(), strings.NewReader("hello"), nil)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestLimitReaderThrottlesButPreservesContent(t *testing.T) {
	limiter := newLimiter(1024 * 1024)
	r := limitReader(context.Background(), strings.NewReader("hello world"), limiter)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestLimitReaderBelowChunkSizeDoesNotExceedBurst(t *testing.T) {
	// a rate well under readChunk (32KiB) used to size burst to bytesPerSec
	// alone, so a single readChunk-sized Read would ask WaitN for more
	// tokens than the bucket could ever hold and fail outright.
	limiter := newLimiter(1024)
	payload := strings.Repeat("x", 5000)
	r := limitReader(context.Background(), strings.NewReader(payload), limiter)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != payload {
		t.Errorf("content mismatch, got %d bytes want %d", len(got), len(payload))
	}
}
