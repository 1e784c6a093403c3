package stage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/radawson/apt-mirror/apt"
)

func TestPromoteMetadataRenamesIntoPlace(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp-release")
	if err := os.WriteFile(tmp, []byte("Origin: Ubuntu\n"), 0644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "skel", "jammy", "Release")

	if err := PromoteMetadata(tmp, dest); err != nil {
		t.Fatalf("PromoteMetadata: %v", err)
	}
	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading promoted file: %v", err)
	}
	if string(content) != "Origin: Ubuntu\n" {
		t.Errorf("content = %q", content)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("expected tmp file to be gone after rename")
	}
}

func TestPromoteArchiveWithUnlinkReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "pool", "curl.deb")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old content"), 0644); err != nil {
		t.Fatal(err)
	}

	tmp := filepath.Join(dir, "tmp-archive")
	if err := os.WriteFile(tmp, []byte("new content"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := PromoteArchive(tmp, dest, true); err != nil {
		t.Fatalf("PromoteArchive: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Errorf("content = %q", got)
	}
}

func TestAlreadyCurrentMatchesSizeAndHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	content := []byte("12345")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	hashes := apt.Hashes{"SHA256": hex.EncodeToString(sum[:])}

	if !AlreadyCurrent(path, int64(len(content)), hashes) {
		t.Error("expected AlreadyCurrent=true for matching size and hash")
	}
	if AlreadyCurrent(path, 999, hashes) {
		t.Error("expected AlreadyCurrent=false for mismatched size")
	}
}

func TestAlreadyCurrentSameSizeButCorruptContentIsNotCurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	original := []byte("12345")
	if err := os.WriteFile(path, original, 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(original)
	hashes := apt.Hashes{"SHA256": hex.EncodeToString(sum[:])}

	// flip one byte, keeping size identical
	corrupt := []byte("12845")
	if err := os.WriteFile(path, corrupt, 0644); err != nil {
		t.Fatal(err)
	}

	if AlreadyCurrent(path, int64(len(corrupt)), hashes) {
		t.Error("expected AlreadyCurrent=false for same-size but hash-mismatched file")
	}
}

func TestAlreadyCurrentMissingFile(t *testing.T) {
	if AlreadyCurrent(filepath.Join(t.TempDir(), "missing"), 0, nil) {
		t.Error("expected AlreadyCurrent=false for missing file")
	}
}
