package peer

import (
	"crypto/ecdh"
	"crypto/ed25519"

	"ames/pkg/crypto/agree"
	"ames/pkg/ship"
)

// Channel is the transient view joining our identity with one peer's
// identity, computed fresh for every event and threaded through the
// handlers that need it. It is never stored: persisting it would
// duplicate cryptographic material that already lives in Transport and
// peer.State.
type Channel struct {
	OurShip       ship.Ship
	OurLife       ship.Life
	OurSigningKey ed25519.PrivateKey
	OurAgreeKey   *ecdh.PrivateKey

	HerShip      ship.Ship
	HerLife      ship.Life
	HerRift      ship.Rift
	SymmetricKey []byte
}

// NewChannel takes the symmetric key from the peer's own SymmetricKey
// field, deriving it from our agreement private key and the peer's
// public key only when that field is empty, and assembles the rest of
// the channel from the two identities.
func NewChannel(t *Transport, p *State) (Channel, error) {
	ch := Channel{
		OurShip:       t.OurShip,
		OurLife:       t.OurLife,
		OurSigningKey: t.SigningKey,
		OurAgreeKey:   t.AgreeKey,
		HerShip:       p.Ship,
		HerLife:       p.Life,
		HerRift:       p.Rift,
	}
	if p.Known && len(p.PublicKey) > 0 {
		if len(p.SymmetricKey) > 0 {
			ch.SymmetricKey = p.SymmetricKey
		} else {
			key, err := agree.SymmetricKey(t.AgreeKey, p.PublicKey)
			if err != nil {
				return Channel{}, err
			}
			ch.SymmetricKey = key
		}
	}
	return ch, nil
}

func agreeKeyFromRaw(raw []byte) (*ecdh.PrivateKey, error) {
	return agree.ParsePrivateKey(raw)
}
