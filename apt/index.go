package apt

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Package is one binary-package stanza of a Packages index, trimmed to the
// fields the mirror engine acts on. Debian Policy defines the full stanza
// (https://www.debian.org/doc/debian-policy/ch-controlfields.html); fields
// irrelevant to mirroring (Depends, Description, …) are not modeled here
// since nothing in this engine opens or introspects the package itself.
type Package struct {
	Name         string
	Version      string
	Architecture string
	Filename     string // pool/… path, relative to the repository root
	Size         int64
	Hashes       Hashes
}

// ParsePackages parses a decompressed Packages index body: RFC 822-style
// stanzas separated by blank lines (§4.B).
func ParsePackages(content string) ([]*Package, error) {
	var pkgs []*Package
	for _, stanza := range splitStanzas(content) {
		if strings.TrimSpace(stanza) == "" {
			continue
		}
		fields, err := parseStanza(stanza)
		if err != nil {
			return nil, err
		}
		pkg := &Package{
			Name:         fields[string(FieldPackage)],
			Version:      fields[string(FieldVersion)],
			Architecture: fields[string(FieldArchitecture)],
			Filename:     fields[string(FieldFilename)],
			Hashes:       Hashes{},
		}
		if s := fields[string(FieldSize)]; s != "" {
			size, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "package %s: bad Size", pkg.Name)
			}
			pkg.Size = size
		}
		for field, algo := range map[PackageField]string{
			FieldMD5sum: "MD5", FieldSHA1: "SHA1", FieldSHA256: "SHA256", FieldSHA512: "SHA512",
		} {
			if d := fields[string(field)]; d != "" {
				pkg.Hashes[algo] = d
			}
		}
		if pkg.Filename == "" {
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

// Source is one source-package stanza of a Sources index: a Directory
// prefix plus one or more files, each with its own checksum.
type Source struct {
	Name      string
	Version   string
	Directory string
	Files     []SourceFile
}

// SourceFile is one file referenced from a Sources stanza's Files/
// Checksums-* continuation block.
type SourceFile struct {
	Name   string
	Size   int64
	Hashes Hashes
}

// ParseSources parses a decompressed Sources index body. Unlike Packages,
// the per-file checksum lives in a continuation block: "Files:" carries
// MD5, "Checksums-Sha256:"/"Checksums-Sha1:" carry the stronger digests,
// each line "<hex> <size> <basename>".
func ParseSources(content string) ([]*Source, error) {
	var sources []*Source
	for _, stanza := range splitStanzas(content) {
		if strings.TrimSpace(stanza) == "" {
			continue
		}
		fields, blocks, err := parseStanzaWithBlocks(stanza)
		if err != nil {
			return nil, err
		}
		src := &Source{
			Name:      fields[string(SrcPackage)],
			Version:   fields[string(SrcVersion)],
			Directory: fields[string(SrcDirectory)],
		}
		if src.Directory == "" {
			continue
		}

		byName := map[string]*SourceFile{}
		order := []string{}
		addBlock := func(field string, algo string) error {
			for _, line := range blocks[field] {
				parts := strings.Fields(line)
				if len(parts) != 3 {
					continue
				}
				digest, sizeStr, name := parts[0], parts[1], parts[2]
				size, err := strconv.ParseInt(sizeStr, 10, 64)
				if err != nil {
					return errors.Wrapf(err, "source %s: bad size for %s", src.Name, name)
				}
				f, ok := byName[name]
				if !ok {
					f = &SourceFile{Name: name, Size: size, Hashes: Hashes{}}
					byName[name] = f
					order = append(order, name)
				}
				f.Hashes[algo] = digest
			}
			return nil
		}
		if err := addBlock(string(SrcFiles), "MD5"); err != nil {
			return nil, err
		}
		if err := addBlock(string(SrcChecksumsSha1), "SHA1"); err != nil {
			return nil, err
		}
		if err := addBlock(string(SrcChecksumsSha256), "SHA256"); err != nil {
			return nil, err
		}
		for _, name := range order {
			src.Files = append(src.Files, *byName[name])
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func splitStanzas(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(normalized, "\n\n")
}

// parseStanza parses one RFC822-style stanza into a flat field map,
// folding continuation lines (leading whitespace) into the previous
// field's value.
func parseStanza(stanza string) (map[string]string, error) {
	fields := map[string]string{}
	var currentKey string

	scanner := bufio.NewScanner(strings.NewReader(stanza))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && currentKey != "" {
			fields[currentKey] += "\n" + strings.TrimSpace(line)
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		fields[key] = value
		currentKey = key
	}
	return fields, scanner.Err()
}

// parseStanzaWithBlocks is like parseStanza but also returns, per field
// name, the raw continuation lines underneath it (for Files/Checksums-*
// blocks whose lines are themselves structured, not prose to fold).
func parseStanzaWithBlocks(stanza string) (map[string]string, map[string][]string, error) {
	fields := map[string]string{}
	blocks := map[string][]string{}
	var currentKey string

	scanner := bufio.NewScanner(strings.NewReader(stanza))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && currentKey != "" {
			blocks[currentKey] = append(blocks[currentKey], strings.TrimSpace(line))
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		fields[key] = value
		currentKey = key
	}
	return fields, blocks, scanner.Err()
}
