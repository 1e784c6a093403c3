// Package signature isolates GPG verification behind a small interface, per
// SPEC_FULL.md §9's design note: the external tool coupling to gpgv is kept
// at arm's length with well-defined input/output, and a fake is provided
// for tests so the rest of the engine never needs a real keyring.
package signature

import (
	"bytes"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Verifier checks a detached or clear-signed message against a keyring.
// Verify returns nil on success; any other error is treated as a signature
// failure (§7: GPG verify failure blocks promotion and GC for the
// repository).
type Verifier interface {
	Verify(content []byte, signature []byte, keyring string) error
}

// GPGV shells out to the external "gpgv" binary, exactly the delegation
// SPEC_FULL.md's scope section requires: this package never parses a
// keyring or implements OpenPGP itself.
type GPGV struct {
	// Path is the gpgv executable; defaults to "gpgv" on PATH.
	Path string
}

// Verify runs gpgv against content (for InRelease, content itself is
// clear-signed so signature is empty; for detached Release+Release.gpg,
// signature carries the .gpg bytes).
func (g *GPGV) Verify(content, sig []byte, keyring string) error {
	bin := g.Path
	if bin == "" {
		bin = "gpgv"
	}

	args := []string{"--keyring", keyring}

	contentFile, err := os.CreateTemp("", "apt-mirror-release-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(contentFile.Name())
	defer contentFile.Close()
	if _, err := contentFile.Write(content); err != nil {
		return errors.Wrap(err, "writing temp file")
	}
	contentFile.Close()

	if len(sig) > 0 {
		sigFile, err := os.CreateTemp("", "apt-mirror-sig-*")
		if err != nil {
			return errors.Wrap(err, "creating sig temp file")
		}
		defer os.Remove(sigFile.Name())
		defer sigFile.Close()
		if _, err := sigFile.Write(sig); err != nil {
			return errors.Wrap(err, "writing sig temp file")
		}
		sigFile.Close()
		args = append(args, sigFile.Name(), contentFile.Name())
	} else {
		args = append(args, contentFile.Name())
	}

	cmd := exec.Command(bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "gpgv: %s", stderr.String())
	}
	return nil
}

// Fake always returns Err (nil for "always succeeds"), letting tests
// exercise the signature-failure path without a real keyring or binary.
type Fake struct {
	Err error
}

func (f *Fake) Verify(content, sig []byte, keyring string) error {
	return f.Err
}
