package peer

import "ames/pkg/ship"

// sponsorOf returns the best sponsor known for candidate: the PKI-
// supplied sponsor if we have a peer entry with one, else the
// address-space-derived default.
func (t *Transport) sponsorOf(candidate ship.Ship, p *State) ship.Ship {
	if p != nil && p.HasSponsor {
		return p.Sponsor
	}
	return candidate.Sponsor()
}

// routeSend implements §4.5's send(to, blob): walk the sponsor chain
// starting at to, transmitting on every direct or indirect route found
// along the way, stopping at ourselves (a forwarded packet stops there
// too, so it never recurses into our own sponsors and loops) or once no
// further sponsor can be reached.
func (t *Transport) routeSend(to ship.Ship, blob []byte, forwarding bool) []Effect {
	var effects []Effect
	candidate := to
	visited := map[ship.Ship]bool{}

	for {
		if visited[candidate] {
			break
		}
		visited[candidate] = true

		if candidate.Equal(t.OurShip) {
			if !forwarding {
				break
			}
			break
		}

		p, known := t.Peers[candidate]
		var peerState *State
		if known {
			peerState = p
		}
		isKnownPeer := known && p.Known

		if !isKnownPeer && candidate.IsComet() {
			candidate = t.sponsorOf(candidate, peerState)
			continue
		}

		if isKnownPeer && peerState.Route.Known {
			effects = append(effects, sendEffect(peerState.Route.Lane, blob))
			if peerState.Route.Direct {
				break
			}
			candidate = t.sponsorOf(candidate, peerState)
			continue
		}

		if candidate.IsGalaxy() {
			effects = append(effects, sendEffect(Lane{Galaxy: true, GalaxyID: candidate}, blob))
			break
		}

		next := t.sponsorOf(candidate, peerState)
		if next.Equal(candidate) {
			break
		}
		candidate = next
	}
	return effects
}

// Forward re-transmits a packet addressed to someone other than us.
// origin is stamped to the arrival lane only if it was unset and the
// immediate sender isn't a galaxy (galaxies are never worth stamping as
// an origin breadcrumb since they're always reachable directly).
func (t *Transport) Forward(rcvr, sndr ship.Ship, arrival Lane, originSet bool, reencode func(origin []byte) ([]byte, error)) ([]byte, []Effect, error) {
	var origin []byte
	if !originSet && !sndr.IsGalaxy() {
		origin = encodeLane(arrival)
	}
	blob, err := reencode(origin)
	if err != nil {
		return nil, nil, err
	}
	effects := t.routeSend(rcvr, blob, true)
	return blob, effects, nil
}

// encodeLane packs a lane into the <=6 byte origin breadcrumb format.
// Galaxy lanes are resolved by the runtime from a 2-byte galaxy
// address; opaque lanes carry up to 6 raw bytes as supplied by the
// transport layer.
func encodeLane(l Lane) []byte {
	if l.Galaxy {
		b := l.GalaxyID.Bytes()
		return []byte{b[14], b[15]}
	}
	raw := []byte(l.Addr)
	if len(raw) > 6 {
		raw = raw[:6]
	}
	return raw
}
