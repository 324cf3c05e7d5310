package ntlm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Azure/go-ntlmssp"
	"github.com/go-resty/resty/v2"
)

// Config holds NTLM account settings. Domain may also be given as "DOMAIN\user" in Username.
type Config struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Domain   string `mapstructure:"domain"`
}

// Account returns the user name in the form the negotiator expects.
func (c Config) Account() string {
	u := strings.TrimSpace(c.Username)
	d := strings.TrimSpace(c.Domain)
	if d == "" || strings.Contains(u, `\`) || strings.Contains(u, "@") {
		return u
	}
	return d + `\` + u
}

// Adapter wraps the client transport in an NTLM negotiator.
type Adapter struct{ C Config }

func (a Adapter) Name() string { return "ntlm" }

// Apply installs the negotiator. Credentials travel as basic auth on the request,
// which ntlmssp.Negotiator converts into the NTLM handshake.
func (a Adapter) Apply(_ context.Context, c *resty.Client) error {
	if strings.TrimSpace(a.C.Username) == "" || a.C.Password == "" {
		return errors.New("ntlm: username and password are required")
	}
	base := c.GetClient().Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if _, wrapped := base.(ntlmssp.Negotiator); !wrapped {
		c.SetTransport(ntlmssp.Negotiator{RoundTripper: base})
	}
	c.SetBasicAuth(a.C.Account(), a.C.Password)
	return nil
}
