package client

import (
	"context"
	"fmt"
	"io"
)

// Phase is a step of the two-phase attendance flow. The client never assumes a later phase
// will succeed because an earlier one did; the server's answer to the final call decides.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrechecking
	PhaseCapturing
	PhaseUploading
	PhaseSubmitting
	PhaseDone
	PhaseRejected
	PhaseFailed
)

var phaseNames = map[Phase]string{
	PhaseIdle:        "idle",
	PhasePrechecking: "prechecking",
	PhaseCapturing:   "capturing",
	PhaseUploading:   "uploading",
	PhaseSubmitting:  "submitting",
	PhaseDone:        "done",
	PhaseRejected:    "rejected",
	PhaseFailed:      "failed",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseRejected || p == PhaseFailed
}

type Action string

const (
	ActionCheckIn  Action = "checkin"
	ActionCheckOut Action = "checkout"
)

// Camera produces the verification photo. It is opened only after the pre-check allows the action.
type Camera interface {
	Capture(ctx context.Context) (filename string, photo io.Reader, err error)
}

// Outcome is the end state of one Run.
type Outcome struct {
	Phase  Phase
	Result *Result
	// Reason explains a rejection in words the user can act on.
	Reason string
	Err    error
}

// Flow drives check-in or check-out through pre-check, capture, upload and submit.
type Flow struct {
	client *Client
	// OnPhase, when set, observes every transition.
	OnPhase func(Phase)
	phase   Phase
}

func NewFlow(c *Client) *Flow {
	return &Flow{client: c}
}

func (f *Flow) Phase() Phase { return f.phase }

func (f *Flow) enter(p Phase) {
	f.phase = p
	if f.OnPhase != nil {
		f.OnPhase(p)
	}
}

// Run performs action. A nil camera submits without a photo.
func (f *Flow) Run(ctx context.Context, action Action, camera Camera) Outcome {
	if action != ActionCheckIn && action != ActionCheckOut {
		return f.fail(fmt.Errorf("unknown action %q", action))
	}
	f.enter(PhaseIdle)

	f.enter(PhasePrechecking)
	status, err := f.client.Status(ctx)
	if err != nil {
		return f.fromError(err)
	}
	if ok, reason := allowed(status, action); !ok {
		f.enter(PhaseRejected)
		return Outcome{Phase: PhaseRejected, Reason: reason}
	}

	var photoURL string
	if camera != nil {
		f.enter(PhaseCapturing)
		name, photo, err := camera.Capture(ctx)
		if err != nil {
			return f.fail(fmt.Errorf("capture photo: %w", err))
		}

		f.enter(PhaseUploading)
		uploaded, err := f.client.UploadPhoto(ctx, string(action), name, photo)
		if err != nil {
			return f.fromError(err)
		}
		photoURL = uploaded.URL
	}

	f.enter(PhaseSubmitting)
	var res *Result
	if action == ActionCheckIn {
		res, err = f.client.CheckIn(ctx, photoURL)
	} else {
		res, err = f.client.CheckOut(ctx, photoURL)
	}
	if err != nil {
		return f.fromError(err)
	}

	f.enter(PhaseDone)
	return Outcome{Phase: PhaseDone, Result: res}
}

func (f *Flow) fail(err error) Outcome {
	f.enter(PhaseFailed)
	return Outcome{Phase: PhaseFailed, Err: err}
}

// fromError maps business refusals to Rejected and everything else to Failed.
func (f *Flow) fromError(err error) Outcome {
	if ae, ok := AsAPIError(err); ok && ae.Rejected() {
		f.enter(PhaseRejected)
		return Outcome{Phase: PhaseRejected, Reason: ae.Message, Err: err}
	}
	return f.fail(err)
}

func allowed(s *Status, action Action) (bool, string) {
	if !s.Permission.Allowed {
		return false, s.Permission.Reason
	}
	switch action {
	case ActionCheckIn:
		if !s.CanCheckIn {
			return false, "you have already checked in today"
		}
	case ActionCheckOut:
		if s.CanCheckOut {
			return true, ""
		}
		if s.HasCheckedOutToday {
			return false, "you have already checked out today"
		}
		return false, "you have not checked in today, check in first"
	}
	return true, ""
}
