package auth

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/termsync/internal/auth/basic"
	"github.com/loykin/termsync/internal/auth/ntlm"
	"github.com/loykin/termsync/internal/auth/oauth2"
)

// Built-in provider registrations
func init() {
	Register("ntlm", func(spec map[string]interface{}) (Method, error) {
		var c ntlm.Config
		if err := mapstructure.Decode(spec, &c); err != nil {
			return nil, err
		}
		return ntlm.Adapter{C: c}, nil
	})

	Register("basic", func(spec map[string]interface{}) (Method, error) {
		var c basic.Config
		if err := mapstructure.Decode(spec, &c); err != nil {
			return nil, err
		}
		return basic.Adapter{C: c}, nil
	})

	Register("oauth2", func(spec map[string]interface{}) (Method, error) {
		var c oauth2.ClientCredentialsConfig
		if err := mapstructure.Decode(spec, &c); err != nil {
			return nil, err
		}
		return oauth2.Adapter{C: c}, nil
	})
}
