package config

// IdentityConfig describes our own Ames identity: which ship we are and
// where our signing/agreement key material comes from.
type IdentityConfig struct {
	Ship           string `mapstructure:"ship"`             // decimal ship address, optionally prefixed with ~
	Alg            string `mapstructure:"alg"`              // always ed25519
	PrivateKey     string `mapstructure:"private_key"`      // base64url(no padding) raw seed bytes
	PrivateKeyFile string `mapstructure:"private_key_file"` // path to a file holding the above
}
