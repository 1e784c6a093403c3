package apt

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Release is the parsed content of a Release/InRelease stanza: top-level
// fields plus, per declared path, its size and every declared hash.
type Release struct {
	Origin        string
	Label         string
	Suite         string
	Codename      string
	Version       string
	Architectures string
	Components    string
	Description   string

	// Entries maps a path relative to the dists/<suite>/ directory to its
	// declared size and per-algorithm hashes, merged across every hash
	// block the Release file carries.
	Entries map[string]*ReleaseEntry
}

// ReleaseEntry is one line of a Release file's hash block, merged across
// every algorithm that lists the same path.
type ReleaseEntry struct {
	Path   string
	Size   int64
	Hashes Hashes
}

// ParseRelease parses a raw Release/InRelease body (already stripped of any
// clear-sign armor — see StripClearSign) per §4.B: a stanza of "Name:
// value" lines plus continuation blocks under SHA256:/SHA1:/MD5Sum: whose
// continuation lines are " <hex> <size> <relative-path>".
//
// When the same path appears under more than one hash block its declared
// size must agree across blocks; disagreement is fatal for the repository
// (§4.B), reported as an error here so the caller can abort the run.
func ParseRelease(content string) (*Release, error) {
	rel := &Release{Entries: map[string]*ReleaseEntry{}}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var currentHashField ReleaseField
	inHashBlock := false

	for scanner.Scan() {
		line := scanner.Text()

		if inHashBlock && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			if err := addHashLine(rel, currentHashField, line); err != nil {
				return nil, err
			}
			continue
		}
		inHashBlock = false

		if line == "" {
			continue
		}

		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := ReleaseField(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])

		if isHashField(key) {
			currentHashField = key
			inHashBlock = true
			continue
		}

		switch key {
		case RelOrigin:
			rel.Origin = value
		case RelLabel:
			rel.Label = value
		case RelSuite:
			rel.Suite = value
		case RelCodename:
			rel.Codename = value
		case RelVersion:
			rel.Version = value
		case RelArchitectures:
			rel.Architectures = value
		case RelComponents:
			rel.Components = value
		case RelDescription:
			rel.Description = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning release")
	}
	return rel, nil
}

func isHashField(f ReleaseField) bool {
	for _, h := range hashFields {
		if f == h {
			return true
		}
	}
	return false
}

// addHashLine parses one continuation line "<hex> <size> <relative-path>"
// and merges it into rel.Entries, enforcing the cross-algorithm size
// consistency invariant from §4.B.
func addHashLine(rel *Release, field ReleaseField, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return errors.Errorf("malformed hash line %q", line)
	}
	digest, sizeStr, path := fields[0], fields[1], fields[2]
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parsing size in hash line %q", line)
	}

	entry, ok := rel.Entries[path]
	if !ok {
		entry = &ReleaseEntry{Path: path, Size: size, Hashes: Hashes{}}
		rel.Entries[path] = entry
	} else if entry.Size != size {
		return errors.Errorf("inconsistent size for %s: %d vs %d", path, entry.Size, size)
	}

	entry.Hashes[hashAlgoName(field)] = digest
	return nil
}

// hashAlgoName maps a Release hash-block header to the canonical algorithm
// name used throughout apt.Hashes ("MD5", not "MD5Sum").
func hashAlgoName(field ReleaseField) string {
	if field == RelMD5Sum {
		return "MD5"
	}
	return string(field)
}

// StripClearSign removes the "-----BEGIN PGP SIGNED MESSAGE-----" armor
// from an InRelease body, returning the inner Release-format text. The
// signature itself is left untouched for the external verifier
// (signature.Verify) to check against the original bytes.
func StripClearSign(content string) string {
	const beginSig = "-----BEGIN PGP SIGNATURE-----"
	start := strings.Index(content, "\n\n")
	if !strings.HasPrefix(content, "-----BEGIN PGP SIGNED MESSAGE-----") || start < 0 {
		return content
	}
	body := content[start+2:]
	if end := strings.Index(body, beginSig); end >= 0 {
		body = body[:end]
	}
	// clearsigned lines starting with "- " have the dash-escape removed
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "- ")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
}
