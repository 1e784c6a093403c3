package apt

import "fmt"

// CandidatePaths enumerates every metadata object path §4.A names for a
// repository's suite, components, and architectures. These are candidates
// only — the parser in release.go/index.go filters them against what the
// Release file actually lists.
func CandidatePaths(suite string, components, architectures []string, mirrorSources bool) []string {
	var paths []string

	distsRoot := "dists/" + suite
	paths = append(paths,
		distsRoot+"/InRelease",
		distsRoot+"/Release",
		distsRoot+"/Release.gpg",
	)

	arches := withBinaryAll(architectures)

	for _, c := range components {
		for _, a := range arches {
			base := fmt.Sprintf("%s/%s/binary-%s/Packages", distsRoot, c, a)
			paths = append(paths, base, base+".gz", base+".xz", base+".bz2")
			paths = append(paths, fmt.Sprintf("%s/%s/i18n/Translation-en", distsRoot, c))
			paths = append(paths, fmt.Sprintf("%s/%s/i18n/Translation-en.bz2", distsRoot, c))
		}
		if mirrorSources {
			base := fmt.Sprintf("%s/%s/source/Sources", distsRoot, c)
			paths = append(paths, base, base+".gz", base+".xz", base+".bz2")
		}
	}

	for _, a := range architectures {
		base := fmt.Sprintf("%s/Contents-%s", distsRoot, a)
		paths = append(paths, base, base+".gz")
	}

	return paths
}

// withBinaryAll ensures "all" is present alongside the requested
// architectures, per §4.A: "binary-all is always included".
func withBinaryAll(architectures []string) []string {
	for _, a := range architectures {
		if a == "all" {
			return architectures
		}
	}
	out := make([]string, 0, len(architectures)+1)
	out = append(out, architectures...)
	return append(out, "all")
}
