package peer

import (
	"time"

	"ames/pkg/pki"
	"ames/pkg/ship"
)

// TaskKind discriminates an inbound task from the host event loop. The
// set is closed; Dispatch panics on an unrecognized kind rather than
// silently ignoring it, since an unhandled task is a protocol bug, not
// user data to be tolerant of.
type TaskKind int

const (
	TaskBorn TaskKind = iota
	TaskHear
	TaskHeed
	TaskJilt
	TaskPlea
	TaskPKIResult
	TaskProd
	TaskSift
	TaskSpew
	TaskStir
	TaskTrim
	TaskVega
	// TaskConsumerDone is not named among the host tasks in §6, but the
	// consumer handshake of §4.4 requires some external input carrying
	// the local consumer's disposition back into the sink; this
	// completes that gap in the external interface.
	TaskConsumerDone
	// TaskWake carries a previously armed retransmission timer's firing
	// back into Dispatch; nothing else drives the packet pump's Wake.
	TaskWake
	// TaskTick is not named among the host tasks in §6 either, but §4.5's
	// live-to-dead-after-30s-idle QoS transition has no other trigger:
	// nothing in the wire protocol tells a peer its counterpart has gone
	// quiet, so the host must periodically ask every peer to check its
	// own clock against this. One tick task scoped to the whole
	// Transport (rather than one per peer) keeps the host's side of this
	// to a single ticker.
	TaskTick
	// TaskDrop carries §4.4's drop(message-num) operation in from the
	// host; sink.State.Drop has no caller without it.
	TaskDrop
)

// SpewFlags records the debug categories a spew task asks for; the
// Transport keeps them in Verbosity, and no log call site reads them.
// Field names mirror the flag letters named in §6.
type SpewFlags struct {
	Snd bool
	Rcv bool
	Odd bool
	Msg bool
	Ges bool
	For bool
	Rot bool
}

// Task is one inbound instruction from the host. Only the fields
// relevant to Kind are meaningful. Now is supplied by the host rather
// than read from the clock internally, keeping the core deterministic
// and replayable from a logged task sequence.
type Task struct {
	Kind TaskKind
	Now  time.Time

	// TaskHear
	Lane         Lane
	Blob         []byte
	PriorFailure string

	// TaskHeed / TaskJilt
	Subscriber string
	HeedShip   ship.Ship

	// TaskPlea
	PleaTo      ship.Ship
	PleaDuct    Duct
	Subsystem   string
	Payload     []byte

	// TaskPKIResult
	PKI pki.Result

	// TaskProd / TaskSift
	Ships []ship.Ship

	// TaskSpew
	Spew SpewFlags

	// TaskConsumerDone
	DoneShip ship.Ship
	DoneBone uint32
	DoneOK   bool
	DoneErr  string

	// TaskWake
	WakeShip ship.Ship
	WakeBone uint32

	// TaskDrop
	DropShip       ship.Ship
	DropBone       uint32
	DropMessageNum uint32
}
