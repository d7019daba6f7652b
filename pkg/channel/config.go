package channel

import (
	"fmt"

	apnserrors "github.com/kart-io/apnshub/pkg/errors"
)

// Config describes one credential identity. BundleID and Production drive routing;
// the remaining fields are handed to the Dialer untouched.
type Config struct {
	BundleID   string `yaml:"bundle_id" json:"bundleId"`
	Production bool   `yaml:"production" json:"production"`

	Cert       string `yaml:"cert,omitempty" json:"cert,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	Pfx        string `yaml:"pfx,omitempty" json:"pfx,omitempty"`
	Passphrase string `yaml:"passphrase,omitempty" json:"passphrase,omitempty"`

	// Token based authentication with a .p8 signing key.
	AuthKey string `yaml:"auth_key,omitempty" json:"authKey,omitempty"`
	KeyID   string `yaml:"key_id,omitempty" json:"keyId,omitempty"`
	TeamID  string `yaml:"team_id,omitempty" json:"teamId,omitempty"`
}

// Priority returns 0 for production credentials and 1 otherwise. Lower is preferred.
func (c Config) Priority() int {
	if c.Production {
		return 0
	}
	return 1
}

// Validate checks the fields routing depends on.
func (c Config) Validate() error {
	if c.BundleID == "" {
		return apnserrors.Newf(apnserrors.ErrMisconfigured, "BundleId is missing for %s", c)
	}
	return nil
}

// String renders the config without the passphrase.
func (c Config) String() string {
	return fmt.Sprintf("{bundleId:%q production:%t cert:%q key:%q pfx:%q authKey:%q}",
		c.BundleID, c.Production, c.Cert, c.Key, c.Pfx, c.AuthKey)
}
