package httpc

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/termsync/internal/constants"
)

// Options controls how the GO API client is built.
type Options struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Insecure      bool          `mapstructure:"insecure" yaml:"insecure"`
	MinTLSVersion string        `mapstructure:"min_tls_version" yaml:"min_tls_version"`
	MaxTLSVersion string        `mapstructure:"max_tls_version" yaml:"max_tls_version"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// ParseTLSVersion maps "1.0".."1.3" (optionally prefixed with "tls") to crypto/tls constants.
// An empty string yields 0, meaning "library default".
func ParseTLSVersion(v string) (uint16, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "tls")
	switch s {
	case "":
		return 0, nil
	case "1.0", "10":
		return tls.VersionTLS10, nil
	case "1.1", "11":
		return tls.VersionTLS11, nil
	case "1.2", "12":
		return tls.VersionTLS12, nil
	case "1.3", "13":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("httpc: unsupported TLS version %q", v)
	}
}

// TLSConfig builds the client TLS configuration, or nil when defaults apply.
func (o Options) TLSConfig() (*tls.Config, error) {
	minV, err := ParseTLSVersion(o.MinTLSVersion)
	if err != nil {
		return nil, err
	}
	maxV, err := ParseTLSVersion(o.MaxTLSVersion)
	if err != nil {
		return nil, err
	}
	if !o.Insecure && minV == 0 && maxV == 0 {
		return nil, nil
	}
	if minV != 0 && maxV != 0 && minV > maxV {
		return nil, fmt.Errorf("httpc: min TLS version %s is above max %s", o.MinTLSVersion, o.MaxTLSVersion)
	}
	// #nosec G402 -- insecure is an explicit operator opt-in for on-prem GO installs with private CAs
	return &tls.Config{InsecureSkipVerify: o.Insecure, MinVersion: minV, MaxVersion: maxV}, nil
}

// New returns a resty client with a dedicated *http.Transport so auth methods can wrap it.
func New(o Options) (*resty.Client, error) {
	tlsCfg, err := o.TLSConfig()
	if err != nil {
		return nil, err
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg != nil {
		tr.TLSClientConfig = tlsCfg
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout
	}
	ua := o.UserAgent
	if strings.TrimSpace(ua) == "" {
		ua = constants.DefaultUserAgent
	}

	c := resty.New().
		SetTransport(tr).
		SetTimeout(timeout).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", constants.ContentTypeJSON)
	return c, nil
}
