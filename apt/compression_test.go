package apt

import (
	"bytes"
	"compress/gzip"
	"reflect"
	"testing"
)

func declared(paths ...string) map[string]*ReleaseEntry {
	m := map[string]*ReleaseEntry{}
	for _, p := range paths {
		m[p] = &ReleaseEntry{Path: p}
	}
	return m
}

func TestChooseCompressionPrefersXz(t *testing.T) {
	d := declared(
		"main/binary-amd64/Packages",
		"main/binary-amd64/Packages.gz",
		"main/binary-amd64/Packages.xz",
	)
	got, ok := ChooseCompression(d, "main/binary-amd64/Packages")
	if !ok || got != "main/binary-amd64/Packages.xz" {
		t.Errorf("got (%q, %v), want (.xz, true)", got, ok)
	}
}

func TestChooseCompressionFallsBackToUncompressed(t *testing.T) {
	d := declared("main/binary-amd64/Packages")
	got, ok := ChooseCompression(d, "main/binary-amd64/Packages")
	if !ok || got != "main/binary-amd64/Packages" {
		t.Errorf("got (%q, %v), want (uncompressed, true)", got, ok)
	}
}

func TestChooseCompressionNotDeclared(t *testing.T) {
	d := declared("other/Packages")
	if _, ok := ChooseCompression(d, "main/binary-amd64/Packages"); ok {
		t.Error("expected no match")
	}
}

func TestAllCompressionsReturnsEveryDeclaredVariant(t *testing.T) {
	d := declared(
		"main/binary-amd64/Packages",
		"main/binary-amd64/Packages.gz",
		"main/binary-amd64/Packages.xz",
	)
	got := AllCompressions(d, "main/binary-amd64/Packages")
	want := []string{"main/binary-amd64/Packages", "main/binary-amd64/Packages.gz", "main/binary-amd64/Packages.xz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDecompressGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte("Package: curl\n")); err != nil {
		t.Fatal(err)
	}
	w.Close()

	got, err := Decompress("main/binary-amd64/Packages.gz", buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if got != "Package: curl\n" {
		t.Errorf("got %q", got)
	}
}

func TestDecompressUncompressedPassthrough(t *testing.T) {
	got, err := Decompress("main/binary-amd64/Packages", []byte("Package: curl\n"))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if got != "Package: curl\n" {
		t.Errorf("got %q", got)
	}
}
