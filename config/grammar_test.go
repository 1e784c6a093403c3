package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadBasicDirectives(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", `
set base_path /srv/mirror
set nthreads 10
deb http://archive.ubuntu.com/ubuntu jammy main restricted
clean http://archive.ubuntu.com/ubuntu
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasePath != "/srv/mirror" {
		t.Errorf("BasePath = %q", cfg.BasePath)
	}
	if cfg.Nthreads != 10 {
		t.Errorf("Nthreads = %d", cfg.Nthreads)
	}
	if cfg.MirrorPath != "/srv/mirror/mirror" {
		t.Errorf("MirrorPath = %q, want resolved from base_path", cfg.MirrorPath)
	}
	if len(cfg.Repositories) != 1 {
		t.Fatalf("got %d repositories, want 1", len(cfg.Repositories))
	}
	repo := cfg.Repositories[0]
	if repo.Host != "archive.ubuntu.com" || repo.Suite != "jammy" {
		t.Errorf("repo = %+v", repo)
	}
	if len(repo.Components) != 2 || repo.Components[0] != "main" || repo.Components[1] != "restricted" {
		t.Errorf("Components = %v", repo.Components)
	}
	if !repo.CleanAllowed {
		t.Error("expected CleanAllowed after matching clean directive")
	}
}

func TestLoadMergesDuplicateDebLines(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", `
deb http://archive.ubuntu.com/ubuntu jammy main
deb http://archive.ubuntu.com/ubuntu jammy restricted universe
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Repositories) != 1 {
		t.Fatalf("got %d repositories, want 1 (merged)", len(cfg.Repositories))
	}
	comps := cfg.Repositories[0].Components
	want := []string{"main", "restricted", "universe"}
	if len(comps) != len(want) {
		t.Fatalf("Components = %v, want %v", comps, want)
	}
	for i, w := range want {
		if comps[i] != w {
			t.Errorf("Components[%d] = %q, want %q", i, comps[i], w)
		}
	}
}

func TestLoadDebSrcSetsSourceFlag(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", "deb-src http://archive.ubuntu.com/ubuntu jammy main\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Repositories[0].Source {
		t.Error("expected Source=true for deb-src line")
	}
}

func TestLoadVariableExpansion(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", `
set MIRROR http://archive.ubuntu.com/ubuntu
deb $MIRROR jammy main
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Repositories[0].Host != "archive.ubuntu.com" {
		t.Errorf("variable not expanded: %+v", cfg.Repositories[0])
	}
}

func TestLoadArchOption(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", "deb [arch=amd64,arm64] http://archive.ubuntu.com/ubuntu jammy main\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	arches := cfg.Repositories[0].Architectures
	if len(arches) != 2 || arches[0] != "amd64" || arches[1] != "arm64" {
		t.Errorf("Architectures = %v", arches)
	}
}

func TestLoadMergesFragmentDirectory(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", "deb http://a.example/repo jammy main\n")
	fragDir := filepath.Join(dir, "mirror.list.d")
	if err := os.MkdirAll(fragDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, fragDir, "extra.list", "deb http://b.example/repo jammy main\n")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Repositories) != 2 {
		t.Fatalf("got %d repositories, want 2 (fragment merged)", len(cfg.Repositories))
	}
}

func TestLoadUnknownDirectiveFails(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", "bogus directive\n")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error on unrecognized directive")
	}
}

func TestLoadUnknownSetKeyIgnored(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "mirror.list", "set some_future_option 1\n")
	if _, err := Load(p); err != nil {
		t.Fatalf("unknown set key should be a warn-and-ignore, got error: %v", err)
	}
}

func TestParseRate(t *testing.T) {
	cases := map[string]int64{
		"":     0,
		"0":    0,
		"100":  100,
		"100k": 100 * 1024,
		"2M":   2 * 1024 * 1024,
	}
	for input, want := range cases {
		got, err := parseRate(input)
		if err != nil {
			t.Errorf("parseRate(%q): %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("parseRate(%q) = %d, want %d", input, got, want)
		}
	}
}
