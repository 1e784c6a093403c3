package apt

import "testing"

func TestHashesStrongestPrefersSHA512(t *testing.T) {
	h := Hashes{"MD5": "a", "SHA1": "b", "SHA256": "c", "SHA512": "d"}
	algo, digest, ok := h.Strongest()
	if !ok || algo != "SHA512" || digest != "d" {
		t.Errorf("got (%q, %q, %v), want (SHA512, d, true)", algo, digest, ok)
	}
}

func TestHashesStrongestFallsBackToWeaker(t *testing.T) {
	h := Hashes{"MD5": "a"}
	algo, digest, ok := h.Strongest()
	if !ok || algo != "MD5" || digest != "a" {
		t.Errorf("got (%q, %q, %v), want (MD5, a, true)", algo, digest, ok)
	}
}

func TestHashesStrongestEmpty(t *testing.T) {
	if _, _, ok := Hashes{}.Strongest(); ok {
		t.Error("expected ok=false for empty Hashes")
	}
}

func TestArtifactKey(t *testing.T) {
	a := &Artifact{Scheme: "http", Host: "archive.ubuntu.com", RelativePath: "ubuntu/pool/main/c/curl/curl.deb"}
	want := "http|archive.ubuntu.com|ubuntu/pool/main/c/curl/curl.deb"
	if got := a.Key(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestArtifactSameMatchingHash(t *testing.T) {
	a := &Artifact{ByteSize: 100, Hashes: Hashes{"SHA256": "abc"}}
	b := &Artifact{ByteSize: 100, Hashes: Hashes{"SHA256": "abc"}}
	if !a.Same(b) {
		t.Error("expected Same to be true for matching size and hash")
	}
}

func TestArtifactSameMismatchedHash(t *testing.T) {
	a := &Artifact{ByteSize: 100, Hashes: Hashes{"SHA256": "abc"}}
	b := &Artifact{ByteSize: 100, Hashes: Hashes{"SHA256": "def"}}
	if a.Same(b) {
		t.Error("expected Same to be false for mismatched hash")
	}
}

func TestArtifactSameMismatchedSize(t *testing.T) {
	a := &Artifact{ByteSize: 100}
	b := &Artifact{ByteSize: 200}
	if a.Same(b) {
		t.Error("expected Same to be false for mismatched size")
	}
}

func TestArtifactSameUnknownSizeIgnored(t *testing.T) {
	a := &Artifact{ByteSize: -1, Hashes: Hashes{"SHA256": "abc"}}
	b := &Artifact{ByteSize: 100, Hashes: Hashes{"SHA256": "abc"}}
	if !a.Same(b) {
		t.Error("unknown size on one side should not block comparison")
	}
}
