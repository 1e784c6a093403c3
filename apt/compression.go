package apt

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// ChooseCompression picks which compressed variant of a logical index
// (Packages, Sources) to download, given the set of relative paths Release
// declares hashes for. Preference order is .xz > .bz2 > .gz > uncompressed
// (§4.B).
func ChooseCompression(declaredPaths map[string]*ReleaseEntry, basePath string) (string, bool) {
	for _, suffix := range []string{".xz", ".bz2", ".gz", ""} {
		candidate := basePath + suffix
		if _, ok := declaredPaths[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// AllCompressions returns every compressed variant of basePath that Release
// declares a hash for — all of them get mirrored, even though only one is
// downloaded for parsing (§4.B: "all compressions listed by Release with
// hashes are also mirrored").
func AllCompressions(declaredPaths map[string]*ReleaseEntry, basePath string) []string {
	var out []string
	for _, suffix := range []string{"", ".gz", ".xz", ".bz2"} {
		candidate := basePath + suffix
		if _, ok := declaredPaths[candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

// Decompress decompresses raw according to the compression implied by
// path's suffix, returning the plain index text for parsing. The *raw*
// compressed bytes, not this decompressed text, are what gets promoted to
// the mirror tree.
func Decompress(path string, raw []byte) (string, error) {
	switch {
	case strings.HasSuffix(path, ".xz"):
		r, err := xz.NewReader(bytes.NewReader(raw))
		if err != nil {
			return "", errors.Wrap(err, "xz")
		}
		return readAll(r)
	case strings.HasSuffix(path, ".bz2"):
		return readAll(bzip2.NewReader(bytes.NewReader(raw)))
	case strings.HasSuffix(path, ".gz"):
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return "", errors.Wrap(err, "gzip")
		}
		defer r.Close()
		return readAll(r)
	default:
		return string(raw), nil
	}
}

func readAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "decompressing")
	}
	return string(b), nil
}
