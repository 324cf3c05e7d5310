package oauth2

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsConfig configures app-only access, used when GO is hosted behind Entra ID
// instead of on-prem NTLM.
type ClientCredentialsConfig struct {
	ClientID  string   `mapstructure:"client_id"`
	ClientSec string   `mapstructure:"client_secret"`
	TokenURL  string   `mapstructure:"token_url"`
	Scopes    []string `mapstructure:"scopes"`
	// Username and Password are filled from the orchestrator credential and ignored here.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Adapter struct{ C ClientCredentialsConfig }

func (a Adapter) Name() string { return "oauth2" }

// Apply fetches a token once and sets it as the client's bearer token.
// A run is short enough that the token does not need refreshing.
func (a Adapter) Apply(ctx context.Context, c *resty.Client) error {
	tok, err := acquireClientCredentials(ctx, a.C)
	if err != nil {
		return err
	}
	c.SetAuthScheme(tok.Type())
	c.SetAuthToken(tok.AccessToken)
	return nil
}

func acquireClientCredentials(ctx context.Context, c ClientCredentialsConfig) (*oauth2.Token, error) {
	clientID := strings.TrimSpace(c.ClientID)
	clientSecret := strings.TrimSpace(c.ClientSec)
	tokenURL := strings.TrimSpace(c.TokenURL)
	if tokenURL == "" {
		return nil, errors.New("oauth2: token_url is required for client_credentials grant")
	}
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("oauth2: client_id and client_secret are required for client_credentials grant")
	}
	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       c.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth2: token request failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("oauth2: empty access token")
	}
	return tok, nil
}
