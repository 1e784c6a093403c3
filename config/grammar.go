package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Load parses the mirror.list grammar at path, then merges in every
// alphabetically sorted *.list fragment found in a sibling mirror.list.d/
// directory (SPEC_FULL.md §4.G). Later "set" directives override earlier
// ones for the same key; "deb"/"deb-src"/"clean" directives accumulate.
func Load(path string) (*Config, error) {
	c := Default()
	c.DefaultArch = runtime.GOARCH

	vars := map[string]string{}
	repos := map[string]*Repository{}
	var order []string
	cleaned := map[string]bool{}

	parseOne := func(p string) error {
		f, err := os.Open(p)
		if err != nil {
			return errors.Wrapf(err, "opening %s", p)
		}
		defer f.Close()
		return parseStream(f, c, vars, repos, &order, cleaned)
	}

	if err := parseOne(path); err != nil {
		return nil, err
	}

	dir := filepath.Join(filepath.Dir(path), "mirror.list.d")
	entries, err := os.ReadDir(dir)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".list") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			if err := parseOne(filepath.Join(dir, n)); err != nil {
				return nil, err
			}
		}
	}

	for _, k := range order {
		r := repos[k]
		r.CleanAllowed = cleaned[r.BaseURL()]
		c.Repositories = append(c.Repositories, r)
	}

	c.resolvePaths()
	return c, nil
}

func parseStream(r io.Reader, c *Config, vars map[string]string, repos map[string]*Repository, order *[]string, cleaned map[string]bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = expandVars(line, vars)

		fields := strings.Fields(line)
		directive := fields[0]

		switch directive {
		case "set":
			if len(fields) < 3 {
				return errors.Errorf("line %d: set requires key and value", lineNo)
			}
			key, value := fields[1], strings.Join(fields[2:], " ")
			vars[key] = value
			if err := applySet(c, key, value); err != nil {
				return errors.Wrapf(err, "line %d", lineNo)
			}
		case "deb", "deb-src":
			repo, err := parseDebLine(fields[1:], c.DefaultArch)
			if err != nil {
				return errors.Wrapf(err, "line %d", lineNo)
			}
			repo.Source = directive == "deb-src"
			key := repo.Key()
			if existing, ok := repos[key]; ok {
				existing.Components = mergeComponents(existing.Components, repo.Components)
				existing.Architectures = mergeComponents(existing.Architectures, repo.Architectures)
			} else {
				repos[key] = repo
				*order = append(*order, key)
			}
		case "clean":
			if len(fields) < 2 {
				return errors.Errorf("line %d: clean requires a base-url", lineNo)
			}
			cleaned[strings.TrimSuffix(fields[1], "/")] = true
		default:
			return errors.Errorf("line %d: unrecognized directive %q", lineNo, directive)
		}
	}
	return scanner.Err()
}

func mergeComponents(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// expandVars expands "$name" references to previously-set values, one
// name at a time, longest name first so "$foobar" doesn't partially match
// a shorter "$foo" define.
func expandVars(line string, vars map[string]string) string {
	if !strings.Contains(line, "$") {
		return line
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		line = strings.ReplaceAll(line, "$"+name, vars[name])
	}
	return line
}

func applySet(c *Config, key, value string) error {
	switch key {
	case "base_path":
		c.BasePath = value
	case "mirror_path":
		c.MirrorPath = value
	case "skel_path":
		c.SkelPath = value
	case "var_path":
		c.VarPath = value
	case "defaultarch":
		c.DefaultArch = value
	case "nthreads":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(err, "nthreads")
		}
		c.Nthreads = n
	case "limit_rate":
		rate, err := parseRate(value)
		if err != nil {
			return errors.Wrap(err, "limit_rate")
		}
		c.LimitRate = rate
	case "unlink":
		c.Unlink = value == "1" || value == "on" || value == "yes"
	case "use_proxy":
		c.UseProxy = value == "on" || value == "1" || value == "yes"
	case "http_proxy":
		c.HTTPProxy = value
	case "https_proxy":
		c.HTTPSProxy = value
	case "proxy_user":
		c.ProxyUser = value
	case "proxy_password":
		c.ProxyPassword = value
	case "verify_checksums":
		c.VerifyChecksums = value != "0" && value != "off"
	case "verify_gpg":
		c.VerifyGPG = value == "1" || value == "on" || value == "yes"
	case "gpg_keyring":
		c.GPGKeyring = value
	case "resume_partial_downloads":
		c.ResumePartialDownloads = value != "0" && value != "off"
	case "retry_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrap(err, "retry_attempts")
		}
		c.RetryAttempts = n
	case "retry_delay":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrap(err, "retry_delay")
		}
		c.RetryDelay = time.Duration(f * float64(time.Second))
	case "clean":
		mode, err := parseCleanMode(value)
		if err != nil {
			return err
		}
		c.Clean = mode
	case "autoclean":
		if value == "1" || value == "on" || value == "yes" {
			c.Clean = CleanAuto
		}
	case "run_postmirror":
		c.RunPostMirror = value == "1" || value == "on" || value == "yes"
	case "postmirror_script":
		c.PostMirrorScript = value
	default:
		// Unknown keys are ignored for forward compatibility, so config
		// parsing does not fail on them; no warning is emitted for them.
	}
	return nil
}

func parseCleanMode(value string) (CleanMode, error) {
	switch strings.ToLower(value) {
	case "off":
		return CleanOff, nil
	case "on":
		return CleanOn, nil
	case "auto":
		return CleanAuto, nil
	case "both":
		return CleanBoth, nil
	default:
		return CleanOff, errors.Errorf("clean: unrecognized mode %q", value)
	}
}

func parseRate(value string) (int64, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	mult := int64(1)
	suffix := value[len(value)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1024
		value = value[:len(value)-1]
	case 'm', 'M':
		mult = 1024 * 1024
		value = value[:len(value)-1]
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

// parseDebLine parses the tail of a "deb"/"deb-src" line: optional
// "[arch=a,b signed-by=path]" options, then url, suite, component….
func parseDebLine(fields []string, defaultArch string) (*Repository, error) {
	if len(fields) == 0 {
		return nil, errors.New("deb line missing URL")
	}

	repo := &Repository{}
	idx := 0
	if strings.HasPrefix(fields[0], "[") {
		opt := fields[0]
		for !strings.HasSuffix(opt, "]") && idx+1 < len(fields) {
			idx++
			opt += " " + fields[idx]
		}
		opt = strings.TrimPrefix(opt, "[")
		opt = strings.TrimSuffix(opt, "]")
		if err := applyDebOptions(repo, opt); err != nil {
			return nil, err
		}
		idx++
	}

	if idx >= len(fields) {
		return nil, errors.New("deb line missing URL")
	}
	rawURL := fields[idx]
	idx++
	if idx >= len(fields) {
		return nil, errors.New("deb line missing suite")
	}
	suite := fields[idx]
	idx++
	components := fields[idx:]

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", rawURL)
	}
	repo.Scheme = u.Scheme
	repo.Host = u.Host
	repo.PathPrefix = strings.Trim(u.Path, "/")
	repo.Suite = suite
	repo.Components = components

	if len(repo.Architectures) == 0 {
		repo.Architectures = []string{defaultArch}
	}
	return repo, nil
}

func applyDebOptions(repo *Repository, opt string) error {
	for _, kv := range strings.Fields(opt) {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("malformed option %q", kv)
		}
		switch parts[0] {
		case "arch":
			repo.Architectures = strings.Split(parts[1], ",")
		case "signed-by":
			repo.SignedBy = parts[1]
		}
	}
	return nil
}
