package signature

import (
	"errors"
	"testing"
)

func TestFakeVerifySuccess(t *testing.T) {
	f := &Fake{}
	if err := f.Verify([]byte("content"), nil, "keyring"); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestFakeVerifyFailure(t *testing.T) {
	want := errors.New("bad signature")
	f := &Fake{Err: want}
	if err := f.Verify([]byte("content"), []byte("sig"), "keyring"); err != want {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestGPGVMissingBinary(t *testing.T) {
	g := &GPGV{Path: "/nonexistent/gpgv-binary-that-does-not-exist"}
	err := g.Verify([]byte("content"), nil, "/dev/null")
	if err == nil {
		t.Fatal("expected error when gpgv binary is missing")
	}
}
