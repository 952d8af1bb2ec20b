package config

// NetConfig contains the single UDP lane Ames listens on plus PKI
// oracle and sponsor bootstrap settings.
type NetConfig struct {
	Listen      string       `mapstructure:"listen"`       // UDP address, e.g. ":34343"
	OracleAddr  string       `mapstructure:"oracle_addr"`  // remote PKI oracle endpoint (unused: resolving Azimuth is out of scope; Peers below seeds a local directory instead)
	SponsorShip string       `mapstructure:"sponsor_ship"` // bootstrap sponsor, if any
	SponsorLane string       `mapstructure:"sponsor_lane"` // bootstrap sponsor's UDP address
	Peers       []PeerConfig `mapstructure:"peers"`        // static PKI directory entries
}

// PeerConfig is one entry of the static PKI directory a node's oracle
// is seeded from in lieu of a real Azimuth client.
type PeerConfig struct {
	Ship      string `mapstructure:"ship"`       // decimal ship address
	Life      uint32 `mapstructure:"life"`
	Suite     string `mapstructure:"suite"`      // key suite name; ed25519 when empty
	PublicKey string `mapstructure:"public_key"` // base64url(no padding) ed25519 public key
	Lane      string `mapstructure:"lane"`       // known UDP address, if direct
}
