package basic

import (
	"context"
	"errors"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Config holds configuration for Basic authentication.
type Config struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Adapter struct{ C Config }

func (a Adapter) Name() string { return "basic" }

func (a Adapter) Apply(_ context.Context, c *resty.Client) error {
	u := strings.TrimSpace(a.C.Username)
	if u == "" || a.C.Password == "" {
		return errors.New("basic: username and password are required")
	}
	c.SetBasicAuth(u, a.C.Password)
	return nil
}
