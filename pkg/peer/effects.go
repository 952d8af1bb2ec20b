package peer

import (
	"time"

	"ames/pkg/ship"
)

// EffectKind discriminates an outbound effect. Effects are the only
// way the core talks to the outside world: the handler never performs
// I/O itself, it only describes what the host should do.
type EffectKind int

const (
	EffectSend EffectKind = iota
	EffectWait
	EffectRest
	EffectGive
	EffectLog
)

// GiveKind discriminates the shape of a give-to-local-caller effect.
type GiveKind int

const (
	GiveDone GiveKind = iota
	GiveBoon
	GiveLost
	GiveClog
	GiveTurf
)

// Effect is one outbound instruction collected while processing a
// single inbound task. A handler call returns a slice of these; the
// host is responsible for carrying them out.
type Effect struct {
	Kind EffectKind

	// EffectSend
	Lane  Lane
	Bytes []byte

	// EffectWait / EffectRest
	Wire TimerWire
	When time.Time

	// EffectGive
	Give       GiveKind
	Duct       Duct
	MessageNum uint32
	Err        string
	Payload    []byte
	ClogShip   ship.Ship

	// EffectLog
	Text string
}

func sendEffect(lane Lane, bytes []byte) Effect { return Effect{Kind: EffectSend, Lane: lane, Bytes: bytes} }

func waitEffect(wire TimerWire, when time.Time) Effect {
	return Effect{Kind: EffectWait, Wire: wire, When: when}
}

func restEffect(wire TimerWire) Effect { return Effect{Kind: EffectRest, Wire: wire} }

func logEffect(text string) Effect { return Effect{Kind: EffectLog, Text: text} }

func doneEffect(duct Duct, messageNum uint32, errText string) Effect {
	return Effect{Kind: EffectGive, Give: GiveDone, Duct: duct, MessageNum: messageNum, Err: errText}
}

func boonEffect(duct Duct, payload []byte) Effect {
	return Effect{Kind: EffectGive, Give: GiveBoon, Duct: duct, Payload: payload}
}

func lostEffect(duct Duct) Effect { return Effect{Kind: EffectGive, Give: GiveLost, Duct: duct} }

func clogEffect(who ship.Ship) Effect { return Effect{Kind: EffectGive, Give: GiveClog, ClogShip: who} }

func turfEffect(who ship.Ship) Effect { return Effect{Kind: EffectGive, Give: GiveTurf, ClogShip: who} }
