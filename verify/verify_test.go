package verify

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/radawson/apt-mirror/apt"
)

func TestCopyAndVerifySuccess(t *testing.T) {
	content := []byte("hello world")
	sum := sha256.Sum256(content)
	want := apt.Hashes{"SHA256": hex.EncodeToString(sum[:])}

	var dst bytes.Buffer
	err := CopyAndVerify(&dst, bytes.NewReader(content), "pool/x", int64(len(content)), want)
	if err != nil {
		t.Fatalf("CopyAndVerify: %v", err)
	}
	if dst.String() != string(content) {
		t.Errorf("destination mismatch: %q", dst.String())
	}
}

func TestCopyAndVerifySizeMismatch(t *testing.T) {
	content := []byte("hello world")
	var dst bytes.Buffer
	err := CopyAndVerify(&dst, bytes.NewReader(content), "pool/x", 999, apt.Hashes{})
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, ok := err.(*ErrMismatch); !ok {
		t.Errorf("expected *ErrMismatch, got %T", err)
	}
}

func TestCopyAndVerifyHashMismatch(t *testing.T) {
	content := []byte("hello world")
	want := apt.Hashes{"SHA256": "0000000000000000000000000000000000000000000000000000000000000000"}
	var dst bytes.Buffer
	err := CopyAndVerify(&dst, bytes.NewReader(content), "pool/x", int64(len(content)), want)
	if err == nil {
		t.Fatal("expected hash mismatch error")
	}
	if _, ok := err.(*ErrMismatch); !ok {
		t.Errorf("expected *ErrMismatch, got %T", err)
	}
}

func TestVerifyFileRoundTrip(t *testing.T) {
	content := []byte("some archive bytes")
	sum := sha256.Sum256(content)
	want := apt.Hashes{"SHA256": hex.EncodeToString(sum[:])}

	path := filepath.Join(t.TempDir(), "archive.deb")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyFile(path, int64(len(content)), want); err != nil {
		t.Errorf("VerifyFile: %v", err)
	}
}

func TestVerifyFileDetectsCorruption(t *testing.T) {
	content := []byte("some archive bytes")
	sum := sha256.Sum256(content)
	want := apt.Hashes{"SHA256": hex.EncodeToString(sum[:])}

	path := filepath.Join(t.TempDir(), "archive.deb")
	if err := os.WriteFile(path, []byte("corrupted!"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyFile(path, int64(len(content)), want); err == nil {
		t.Fatal("expected verification failure on corrupted file")
	}
}
