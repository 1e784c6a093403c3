// Package fetch implements the bounded-concurrency download scheduler
// (SPEC_FULL.md §4.C, §5): retry with exponential backoff, HTTP Range
// resume, a global rate limit, and optional proxy/auth, grounded on the
// goroutine+channel dispatch shape of the aptutil/mirrorctl family of
// mirror tools.
package fetch

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/radawson/apt-mirror/config"
)

// userAgent imitates a real apt client, matching what upstream mirrors
// expect to see in access logs.
const userAgent = "Debian APT-HTTP/1.3 (apt-mirror)"

// NewClient builds the *http.Client the scheduler issues every request
// through: one shared, idle-connection-reusing transport, proxy and
// timeouts taken from config.
func NewClient(c *config.Config) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = c.Nthreads
	tr.IdleConnTimeout = c.IdleTimeout
	tr.DialContext = (&net.Dialer{Timeout: c.ConnectTimeout, KeepAlive: 30 * time.Second}).DialContext
	tr.Proxy = nil

	if c.UseProxy {
		proxyFunc, err := proxyFromConfig(c)
		if err != nil {
			return nil, err
		}
		tr.Proxy = proxyFunc
	}

	return &http.Client{
		Transport: tr,
		// No blanket client-wide timeout: §5 says total per-artifact time
		// is unbounded. Connect/idle timeouts are enforced by the
		// transport's DialContext/IdleConnTimeout instead.
		Timeout: 0,
	}, nil
}

func proxyFromConfig(c *config.Config) (func(*http.Request) (*url.URL, error), error) {
	httpProxy, err := parseProxyURL(c.HTTPProxy, c.ProxyUser, c.ProxyPassword)
	if err != nil {
		return nil, err
	}
	httpsProxy, err := parseProxyURL(c.HTTPSProxy, c.ProxyUser, c.ProxyPassword)
	if err != nil {
		return nil, err
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != nil {
			return httpsProxy, nil
		}
		if httpProxy != nil {
			return httpProxy, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}

func parseProxyURL(raw, user, password string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u, nil
}

func newRequestHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	h.Set("Cache-Control", "max-age=0")
	return h
}
