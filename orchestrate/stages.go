package orchestrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/radawson/apt-mirror/apt"
	"github.com/radawson/apt-mirror/fetch"
	"github.com/radawson/apt-mirror/gc"
	"github.com/radawson/apt-mirror/stage"
)

// runMetaStage fetches InRelease (preferred) or Release+Release.gpg,
// verifies the signature when configured, and parses the result (§4.B).
// On success st.release and st.releaseRaw/releaseBody are populated; the
// actual promotion into skel/ happens later, in promoteMetadata, ordered
// after every index has been fetched (§4.D).
func (r *Run) runMetaStage(ctx context.Context, sched *fetch.Scheduler, st *repoState) error {
	st.metaPrefix = joinRepoPath(st.repo.PathPrefix, "dists/"+st.repo.Suite)

	inReleaseURL := st.repo.Scheme + "://" + st.repo.Host + "/" + st.metaPrefix + "/InRelease"
	res := sched.FetchOne(ctx, &fetch.Request{
		Artifact: &apt.Artifact{RelativePath: st.metaPrefix + "/InRelease", ByteSize: -1, SourceStage: apt.StageRelease},
		URL:      inReleaseURL,
	})

	var raw []byte
	var relName string
	if res.Err == nil && res.PartialPath != "" {
		b, err := os.ReadFile(res.PartialPath)
		if err != nil {
			return errors.Wrap(err, "reading InRelease")
		}
		raw = b
		relName = "InRelease"
		defer os.Remove(res.PartialPath)
	} else {
		releaseURL := st.repo.Scheme + "://" + st.repo.Host + "/" + st.metaPrefix + "/Release"
		relRes := sched.FetchOne(ctx, &fetch.Request{
			Artifact: &apt.Artifact{RelativePath: st.metaPrefix + "/Release", ByteSize: -1, SourceStage: apt.StageRelease},
			URL:      releaseURL,
		})
		if relRes.Err != nil || relRes.PartialPath == "" {
			return errors.Wrap(errOrMissing(relRes.Err), "fetching Release")
		}
		b, err := os.ReadFile(relRes.PartialPath)
		if err != nil {
			return errors.Wrap(err, "reading Release")
		}
		raw = b
		relName = "Release"
		defer os.Remove(relRes.PartialPath)

		if r.cfg.VerifyGPG {
			sigURL := st.repo.Scheme + "://" + st.repo.Host + "/" + st.metaPrefix + "/Release.gpg"
			sigRes := sched.FetchOne(ctx, &fetch.Request{
				Artifact: &apt.Artifact{RelativePath: st.metaPrefix + "/Release.gpg", ByteSize: -1, SourceStage: apt.StageRelease},
				URL:      sigURL,
			})
			if sigRes.Err != nil || sigRes.PartialPath == "" {
				return errors.New("signature verification failed: missing Release.gpg")
			}
			sig, err := os.ReadFile(sigRes.PartialPath)
			os.Remove(sigRes.PartialPath)
			if err != nil {
				return errors.Wrap(err, "reading Release.gpg")
			}
			keyring := st.repo.SignedBy
			if keyring == "" {
				keyring = r.cfg.GPGKeyring
			}
			if err := r.verifier.Verify(raw, sig, keyring); err != nil {
				return errors.Wrap(err, "signature verification failed")
			}
		}
	}

	if r.cfg.VerifyGPG && relName == "InRelease" {
		keyring := st.repo.SignedBy
		if keyring == "" {
			keyring = r.cfg.GPGKeyring
		}
		if err := r.verifier.Verify(raw, nil, keyring); err != nil {
			return errors.Wrap(err, "signature verification failed")
		}
	}

	body := string(raw)
	if relName == "InRelease" {
		body = apt.StripClearSign(body)
	}

	rel, err := apt.ParseRelease(body)
	if err != nil {
		return errors.Wrap(err, "parsing release")
	}
	st.release = rel
	st.releaseBody = body
	st.releaseRaw = raw

	// stage raw bytes now, in a temp file under var/; promotion
	// (the actual rename into skel/<host>/dists/<suite>/{InRelease,
	// Release}) happens in promoteMetadata once indices are verified too
	// (§4.D: "Release/InRelease last").
	tmp, err := os.CreateTemp(r.cfg.VarPath, "release-*")
	if err != nil {
		return errors.Wrap(err, "staging release")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errors.Wrap(err, "staging release")
	}
	tmp.Close()
	st.indices = append(st.indices, indexFetch{relPath: st.metaPrefix + "/" + relName, entry: &apt.ReleaseEntry{Path: tmp.Name()}})
	return nil
}

// joinRepoPath concatenates a repository's path-prefix with a root-relative
// path, producing the path under mirror/<host>/… that §3 requires (full
// path from the repository URL, not just the suite-relative tail).
func joinRepoPath(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return strings.TrimSuffix(prefix, "/") + "/" + rel
}

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errors.New("404 or empty body")
}

// runIndexStage fetches every index Release declares for the repository's
// configured components × architectures, parses it, and accumulates
// Archive artifacts into st.archives (§4.B, §4.A).
func (r *Run) runIndexStage(ctx context.Context, sched *fetch.Scheduler, st *repoState) error {
	candidates := apt.CandidatePaths(st.repo.Suite, st.repo.Components, st.repo.Architectures, st.repo.Source)

	declared := map[string]*apt.ReleaseEntry{}
	for relPath, entry := range st.release.Entries {
		declared[st.metaPrefix+"/"+relPath] = entry
	}

	seenBase := map[string]bool{}
	for _, candidate := range candidates {
		if !strings.Contains(candidate, "/binary-") && !strings.Contains(candidate, "/source/Sources") {
			continue
		}
		base := joinRepoPath(st.repo.PathPrefix, strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(candidate, ".xz"), ".gz"), ".bz2"))
		if seenBase[base] {
			continue
		}
		seenBase[base] = true

		chosen, ok := apt.ChooseCompression(declared, base)
		if !ok {
			continue // Release doesn't list this index at all: skip (e.g. arch not published)
		}

		entry := declared[chosen]
		url := st.repo.Scheme + "://" + st.repo.Host + "/" + chosen
		res := sched.FetchOne(ctx, &fetch.Request{
			Artifact: &apt.Artifact{RelativePath: chosen, ByteSize: entry.Size, Hashes: entry.Hashes, SourceStage: apt.StageIndex},
			URL:      url,
		})
		if res.Err != nil {
			return errors.Wrapf(res.Err, "fetching index %s", chosen)
		}
		if res.PartialPath == "" {
			continue
		}

		raw, err := os.ReadFile(res.PartialPath)
		if err != nil {
			return errors.Wrap(err, "reading index")
		}

		plain, err := apt.Decompress(chosen, raw)
		if err != nil {
			os.Remove(res.PartialPath)
			return errors.Wrapf(err, "decompressing %s", chosen)
		}

		if strings.Contains(base, "/source/Sources") {
			srcs, err := apt.ParseSources(plain)
			if err != nil {
				os.Remove(res.PartialPath)
				return errors.Wrapf(err, "parsing %s", chosen)
			}
			for _, s := range srcs {
				for _, f := range s.Files {
					r.addArchive(st, s.Directory+"/"+f.Name, f.Size, f.Hashes)
				}
			}
		} else {
			pkgs, err := apt.ParsePackages(plain)
			if err != nil {
				os.Remove(res.PartialPath)
				return errors.Wrapf(err, "parsing %s", chosen)
			}
			for _, p := range pkgs {
				r.addArchive(st, p.Filename, p.Size, p.Hashes)
			}
		}

		// every compression Release lists is mirrored, not just the one
		// chosen for parsing (§4.B); the chosen variant is already on disk.
		st.indices = append(st.indices, indexFetch{relPath: chosen, entry: entry})
		st.tempIndexPath(chosen, res.PartialPath)

		for _, variant := range apt.AllCompressions(declared, base) {
			if variant == chosen {
				continue
			}
			e := declared[variant]
			vRes := sched.FetchOne(ctx, &fetch.Request{
				Artifact: &apt.Artifact{RelativePath: variant, ByteSize: e.Size, Hashes: e.Hashes, SourceStage: apt.StageIndex},
				URL:      st.repo.Scheme + "://" + st.repo.Host + "/" + variant,
			})
			if vRes.Err != nil || vRes.PartialPath == "" {
				continue // best-effort: the parsed variant already satisfied the repository
			}
			st.indices = append(st.indices, indexFetch{relPath: variant, entry: e})
			st.tempIndexPath(variant, vRes.PartialPath)
		}
	}
	return nil
}

// tempIndexPath is a tiny accumulator so promoteMetadata knows which temp
// file backs which already-fetched index path.
func (st *repoState) tempIndexPath(relPath, tmpPath string) {
	if st.tempPaths == nil {
		st.tempPaths = map[string]string{}
	}
	st.tempPaths[relPath] = tmpPath
}

func (r *Run) addArchive(st *repoState, relPath string, size int64, hashes apt.Hashes) {
	a := &apt.Artifact{
		Scheme:       st.repo.Scheme,
		Host:         st.repo.Host,
		RelativePath: joinRepoPath(st.repo.PathPrefix, relPath),
		ByteSize:     size,
		Hashes:       hashes,
		SourceStage:  apt.StageArchive,
		SourceRepo:   st.repo.Key(),
	}
	st.archives[a.Key()] = &archiveFetch{artifact: a}
}

// runArchiveStage flattens every repository's archive artifacts into one
// global scheduler queue (deduplicated by Artifact.Key(), §3) and promotes
// each verified download into mirror/ (§4.D, §4.G).
func (r *Run) runArchiveStage(ctx context.Context, sched *fetch.Scheduler, states []*repoState, summary *EventRunSummary) error {
	byKey := map[string]*archiveFetch{}
	for _, st := range states {
		if st.failed {
			continue
		}
		for k, af := range st.archives {
			byKey[k] = af
		}
	}

	var requests []*fetch.Request
	var keys []string
	for k, af := range byKey {
		dest := destPath(r.cfg.MirrorPath, af.artifact)
		if stage.AlreadyCurrent(dest, af.artifact.ByteSize, af.artifact.Hashes) {
			summary.Reused++
			continue
		}
		requests = append(requests, &fetch.Request{
			Artifact: af.artifact,
			URL:      af.artifact.Scheme + "://" + af.artifact.Host + "/" + af.artifact.RelativePath,
		})
		keys = append(keys, k)
	}

	results, err := sched.Run(ctx, requests)
	if err != nil {
		return err
	}

	failedRepos := map[string]bool{}
	for i, res := range results {
		af := byKey[keys[i]]
		dest := destPath(r.cfg.MirrorPath, af.artifact)
		if res.Err != nil {
			summary.Failed++
			r.listener(EventArtifactFailed{
				Repository: af.artifact.SourceRepo,
				Path:       af.artifact.RelativePath,
				Kind:       "archive",
				Err:        res.Err.Error(),
			})
			failedRepos[af.artifact.SourceRepo] = true
			continue
		}
		if res.PartialPath == "" {
			summary.Reused++
			continue
		}
		if err := stage.PromoteArchive(res.PartialPath, dest, r.cfg.Unlink); err != nil {
			summary.Failed++
			failedRepos[af.artifact.SourceRepo] = true
			continue
		}
		summary.Fetched++
		summary.BytesMoved += af.artifact.ByteSize
		r.listener(EventArtifactFetched{Repository: af.artifact.SourceRepo, Path: af.artifact.RelativePath, Bytes: af.artifact.ByteSize})
	}

	for _, st := range states {
		if failedRepos[st.repo.Key()] {
			st.failed = true
			st.failure = "one or more archives failed"
		}
	}
	if len(failedRepos) > 0 {
		return errors.Errorf("%d repository(s) had one or more archive failures", len(failedRepos))
	}
	return nil
}

func destPath(mirrorRoot string, a *apt.Artifact) string {
	return filepath.Join(mirrorRoot, a.Host, a.RelativePath)
}

// promoteMetadata promotes every staged index file ahead of Release/
// InRelease, per §4.D: "non-Release files first, then Release/InRelease
// last, so a client observing the tree never sees a Release referencing a
// not-yet-present index."
func (r *Run) promoteMetadata(states []*repoState) error {
	for _, st := range states {
		if st.failed || st.release == nil {
			continue
		}

		for relPath, tmpPath := range st.tempPaths {
			dest := filepath.Join(r.cfg.SkelPath, st.repo.Host, relPath)
			if err := stage.PromoteMetadata(tmpPath, dest); err != nil {
				return err
			}
			mirrorDest := filepath.Join(r.cfg.MirrorPath, st.repo.Host, relPath)
			if err := copyFile(dest, mirrorDest); err != nil {
				return err
			}
		}

		for _, idx := range st.indices {
			if !strings.HasSuffix(idx.relPath, "/InRelease") && !strings.HasSuffix(idx.relPath, "/Release") {
				continue
			}
			dest := filepath.Join(r.cfg.SkelPath, st.repo.Host, idx.relPath)
			if err := stage.PromoteMetadata(idx.entry.Path, dest); err != nil {
				return err
			}
			mirrorDest := filepath.Join(r.cfg.MirrorPath, st.repo.Host, idx.relPath)
			if err := copyFile(dest, mirrorDest); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "reading staged file")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	return os.WriteFile(dest, data, 0644)
}

// repoKeep returns the set of host-relative paths one successfully indexed
// repository wants kept, relative to mirror/<host>/ (§4.F).
func repoKeep(st *repoState) map[string]bool {
	keep := map[string]bool{}
	keep[filepath.ToSlash(filepath.Join(st.metaPrefix, "InRelease"))] = true
	keep[filepath.ToSlash(filepath.Join(st.metaPrefix, "Release"))] = true
	for relPath := range st.release.Entries {
		keep[filepath.ToSlash(filepath.Join(st.metaPrefix, relPath))] = true
	}
	for _, af := range st.archives {
		keep[af.artifact.RelativePath] = true
	}
	return keep
}

// runCleanupGroups partitions every repository by host+path-prefix (the
// filesystem root its files actually land under) and runs one GC pass per
// root, over the union of every repository sharing that root — so two
// "deb" lines that differ only in suite (and so stay distinct Repository
// values, per config.Repository.Key) never cause each other's files to be
// mistaken for garbage (§4.F, §8 property 6).
func (r *Run) runCleanupGroups(states []*repoState, summary *EventRunSummary) error {
	type group struct {
		root         string
		keep         map[string]bool
		cleanAllowed bool
		anyFailed    bool
	}
	groups := map[string]*group{}
	var order []string

	for _, st := range states {
		groupKey := st.repo.Host + "|" + st.repo.PathPrefix
		g, ok := groups[groupKey]
		if !ok {
			g = &group{
				root: filepath.Join(r.cfg.MirrorPath, st.repo.Host, st.repo.PathPrefix),
				keep: map[string]bool{},
			}
			groups[groupKey] = g
			order = append(order, groupKey)
		}
		if st.repo.CleanAllowed {
			g.cleanAllowed = true
		}
		if st.failed || st.release == nil {
			// this repository's wanted-set is unknown this run (meta or
			// index stage never completed); the whole root it shares is
			// skipped below so its existing files are never mistaken for
			// garbage just because we can't name what it still wants.
			g.anyFailed = true
			continue
		}
		// repoKeep paths are host-relative; gc.Compute compares paths
		// relative to the group root, which already ends in the prefix.
		prefix := ""
		if st.repo.PathPrefix != "" {
			prefix = strings.TrimSuffix(st.repo.PathPrefix, "/") + "/"
		}
		for relPath := range repoKeep(st) {
			g.keep[strings.TrimPrefix(relPath, prefix)] = true
		}
	}

	var firstErr error
	for _, groupKey := range order {
		g := groups[groupKey]
		if g.anyFailed {
			r.log.WithField("root", g.root).Warn("skipping GC: a repository sharing this root failed this run")
			continue
		}
		if !g.cleanAllowed {
			continue
		}
		if err := r.runCleanup(groupKey, g.root, g.keep, summary); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// runCleanup computes and applies the GC plan for one mirror-tree root
// shared by every repository at the same host+path-prefix: label identifies
// the root for logging, keep is the union of every such repository's
// wanted-set (§4.F, §8 property 6 — a file wanted by ANY configured
// repository sharing this root is never a GC candidate, even one this run
// didn't clean).
func (r *Run) runCleanup(label, root string, keep map[string]bool, summary *EventRunSummary) error {
	plan, err := gc.Compute(root, keep)
	if err != nil {
		return err
	}
	if !r.cfg.DryRun {
		if err := gc.Apply(plan, r.cfg.Clean, r.cfg.VarPath); err != nil {
			return err
		}
	}

	summary.Deleted += len(plan.Delete)
	r.listener(EventCleanupPlanned{
		Repository: label,
		Mode:       r.cfg.Clean.String(),
		Files:      len(plan.Delete),
		Bytes:      plan.Bytes,
	})
	return nil
}
