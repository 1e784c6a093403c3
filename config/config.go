// Package config loads the mirror.list configuration grammar into a typed,
// immutable record. The grammar itself is a deliberately small line-oriented
// format, not JSON/YAML: "set KEY VALUE", "deb"/"deb-src" lines, and
// "clean <base-url>" lines, parsed with a hand-rolled scanner in the same
// spirit as the RFC822 control-file scanners this package's ancestor used.
package config

import "time"

// CleanMode controls how the reference-tracking garbage collector disposes
// of files that are no longer referenced by any repository's wanted-set.
type CleanMode int

const (
	// CleanOff performs no garbage collection.
	CleanOff CleanMode = iota
	// CleanOn writes var/clean.sh but never unlinks anything itself.
	CleanOn
	// CleanAuto unlinks unreferenced files immediately.
	CleanAuto
	// CleanBoth writes clean.sh and unlinks.
	CleanBoth
)

func (m CleanMode) String() string {
	switch m {
	case CleanOff:
		return "off"
	case CleanOn:
		return "on"
	case CleanAuto:
		return "auto"
	case CleanBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Config is the single configuration record built once by Load from
// mirror.list and mirror.list.d/*.list, then passed down into every
// component. No component reads ambient globals for mirror behavior; the
// one use of environment variables is the HTTP client's fallback to the
// standard proxy variables when use_proxy is on and neither http_proxy nor
// https_proxy is set.
type Config struct {
	BasePath    string
	MirrorPath  string
	SkelPath    string
	VarPath     string
	DefaultArch string

	Nthreads int
	// LimitRate is bytes/sec, 0 meaning unlimited.
	LimitRate int64

	Unlink bool

	UseProxy       bool
	HTTPProxy      string
	HTTPSProxy     string
	ProxyUser      string
	ProxyPassword  string

	VerifyChecksums bool
	VerifyGPG       bool
	GPGKeyring      string

	ResumePartialDownloads bool
	RetryAttempts          int
	RetryDelay             time.Duration

	Clean CleanMode

	RunPostMirror     bool
	PostMirrorScript  string

	ConnectTimeout time.Duration
	IdleTimeout    time.Duration

	Repositories []*Repository

	// DryRun runs discovery and GC planning without fetching archives or
	// unlinking anything. Not part of the base grammar; set by the CLI.
	DryRun bool
}

// Default returns a Config populated with every default named in the
// configuration grammar table.
func Default() *Config {
	return &Config{
		BasePath:    "/var/spool/apt-mirror",
		Nthreads:    20,
		LimitRate:   0,
		Unlink:      false,

		UseProxy: false,

		VerifyChecksums: true,
		VerifyGPG:       false,

		ResumePartialDownloads: true,
		RetryAttempts:          5,
		RetryDelay:             2 * time.Second,

		Clean: CleanOn,

		RunPostMirror: false,

		ConnectTimeout: 30 * time.Second,
		IdleTimeout:    60 * time.Second,
	}
}

// resolvePaths fills MirrorPath/SkelPath/VarPath/PostMirrorScript from
// BasePath whenever the config didn't override them explicitly.
func (c *Config) resolvePaths() {
	if c.MirrorPath == "" {
		c.MirrorPath = c.BasePath + "/mirror"
	}
	if c.SkelPath == "" {
		c.SkelPath = c.BasePath + "/skel"
	}
	if c.VarPath == "" {
		c.VarPath = c.BasePath + "/var"
	}
	if c.PostMirrorScript == "" {
		c.PostMirrorScript = c.VarPath + "/postmirror.sh"
	}
}
