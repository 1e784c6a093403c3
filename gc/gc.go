// Package gc implements the reference-tracking garbage collector
// (SPEC_FULL.md §4.F): diff the live mirror tree against the current run's
// wanted-set and either report or remove what is no longer referenced.
package gc

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/radawson/apt-mirror/config"
)

// Plan is the computed diff for one repository prefix.
type Plan struct {
	Prefix string // mirror/<host>/<path-prefix> root walked
	Delete []string // absolute paths no longer referenced
	Bytes  int64    // total size of Delete
}

// Compute walks mirrorRoot and returns every regular file not present in
// keep (relative paths, as produced by a repository's wanted-set). Per
// §4.F: LOCAL \ KEEP.
func Compute(mirrorRoot string, keep map[string]bool) (*Plan, error) {
	plan := &Plan{Prefix: mirrorRoot}

	err := filepath.WalkDir(mirrorRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(mirrorRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasSuffix(rel, ".partial") {
			return nil // in-flight writes are never GC candidates
		}
		if keep[rel] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		plan.Delete = append(plan.Delete, path)
		plan.Bytes += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "walking mirror tree")
	}

	sort.Strings(plan.Delete)
	return plan, nil
}

// Apply executes plan according to mode: CleanOn writes clean.sh, CleanAuto
// unlinks immediately, CleanBoth does both, CleanOff is a no-op (§4.F).
func Apply(plan *Plan, mode config.CleanMode, varPath string) error {
	switch mode {
	case config.CleanOff:
		return nil
	case config.CleanOn:
		return writeCleanScript(plan, varPath)
	case config.CleanAuto:
		return unlinkAll(plan)
	case config.CleanBoth:
		if err := writeCleanScript(plan, varPath); err != nil {
			return err
		}
		return unlinkAll(plan)
	default:
		return errors.Errorf("unknown clean mode %v", mode)
	}
}

func writeCleanScript(plan *Plan, varPath string) error {
	path := filepath.Join(varPath, "clean.sh")
	var sb strings.Builder
	sb.WriteString("#!/bin/sh\nset -e\n")
	for _, p := range plan.Delete {
		fmt.Fprintf(&sb, "rm -f %s\n", shellQuote(p))
	}
	fmt.Fprintf(&sb, "# total: %d file(s), %d bytes\n", len(plan.Delete), plan.Bytes)
	return os.WriteFile(path, []byte(sb.String()), 0755)
}

func unlinkAll(plan *Plan) error {
	for _, p := range plan.Delete {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", p)
		}
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
