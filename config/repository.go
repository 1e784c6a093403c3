package config

// Repository identifies one mirrored APT repository, derived from a single
// "deb" or "deb-src" configuration line plus the active defaultarch and any
// per-line [arch=…, signed-by=…] options. Immutable for the duration of a
// run.
//
// Two "deb" lines that share Scheme+Host+PathPrefix+Suite are folded into
// one Repository with the union of their Components — see the Open
// Questions note in SPEC_FULL.md: this is preserved, not redesigned,
// behavior.
type Repository struct {
	Scheme       string // "http" or "https"
	Host         string
	PathPrefix   string // everything between the host and "dists/"
	Suite        string
	Components   []string
	Architectures []string
	Source       bool // true for "deb-src" lines
	SignedBy     string

	// CleanAllowed mirrors whether a "clean <base-url>" directive named
	// this repository's base URL; GC only touches a repository's files
	// when this is true (SPEC_FULL.md Open Question (b)).
	CleanAllowed bool
}

// BaseURL reconstructs scheme://host/path-prefix, the string a "clean"
// directive and a "deb" line both key off.
func (r *Repository) BaseURL() string {
	u := r.Scheme + "://" + r.Host
	if r.PathPrefix != "" {
		u += "/" + r.PathPrefix
	}
	return u
}

// Key is the deduplication/merge key used while accumulating "deb" lines:
// two lines produce the same Repository iff scheme+host+path+suite match.
func (r *Repository) Key() string {
	return r.Scheme + "|" + r.Host + "|" + r.PathPrefix + "|" + r.Suite
}
