package apt

// Stage is one of the three sequential phases of a run.
type Stage int

const (
	StageRelease Stage = iota
	StageIndex
	StageArchive
)

func (s Stage) String() string {
	switch s {
	case StageRelease:
		return "release"
	case StageIndex:
		return "index"
	case StageArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Hashes maps an uppercase algorithm name ("MD5", "SHA1", "SHA256",
// "SHA512") to its lowercase-hex digest.
type Hashes map[string]string

// Strongest returns the name and digest of the strongest algorithm present,
// per the preference order SHA512 > SHA256 > SHA1 > MD5, or ("", "", false)
// if Hashes is empty.
func (h Hashes) Strongest() (algo, digest string, ok bool) {
	for _, candidate := range []string{"SHA512", "SHA256", "SHA1", "MD5"} {
		if d, present := h[candidate]; present {
			return candidate, d, true
		}
	}
	return "", "", false
}

// Artifact describes one file to be mirrored. Deduplication key is
// (Scheme, Host, RelativePath): two repositories referencing the same URL
// resolve to a single Artifact within a run.
type Artifact struct {
	Scheme       string
	Host         string
	RelativePath string // path under the repository root, remote and local alike

	ByteSize int64 // -1 when unknown (top-level Release before it's parsed)
	Hashes   Hashes

	SourceStage Stage
	SourceRepo  string // Repository.Key(), back-reference
}

// Key returns the deduplication key described in the data model.
func (a *Artifact) Key() string {
	return a.Scheme + "|" + a.Host + "|" + a.RelativePath
}

// Same reports whether two artifacts describe identical remote content:
// sizes must agree where both are known, and when b carries a's strongest
// algorithm the two digests under it must match. When a has no hashes, or
// b lacks that algorithm, the size check alone decides.
func (a *Artifact) Same(b *Artifact) bool {
	if a.ByteSize >= 0 && b.ByteSize >= 0 && a.ByteSize != b.ByteSize {
		return false
	}
	algo, digest, ok := a.Hashes.Strongest()
	if !ok {
		return true // no hash to compare; size agreement (or unknown) is all we have
	}
	other, ok := b.Hashes[algo]
	if !ok {
		return true
	}
	return other == digest
}
