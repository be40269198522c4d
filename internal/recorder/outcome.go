package recorder

import "sync/atomic"

// CaptureOutcome is a worker's terminal state. Pending means the
// worker never reported back, which the session treats the same as
// Failed when deciding what the assembler may use.
type CaptureOutcome int32

const (
	OutcomePending CaptureOutcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeSkipped
)

func (o CaptureOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// outcomeCell holds a CaptureOutcome that one goroutine writes and
// another may read after a join timeout, while the writer could still
// be running.
type outcomeCell struct {
	v atomic.Int32
}

func (c *outcomeCell) set(o CaptureOutcome) { c.v.Store(int32(o)) }

func (c *outcomeCell) get() CaptureOutcome { return CaptureOutcome(c.v.Load()) }

// TrackOutcome describes one capture track after the session ran.
type TrackOutcome struct {
	Label   string         `json:"label"`
	Outcome CaptureOutcome `json:"-"`
	Status  string         `json:"status"`
	Path    string         `json:"path,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Result is what a finished session reports back to its caller.
type Result struct {
	Base      string         `json:"base"`
	FinalPath string         `json:"final_path,omitempty"`
	Video     TrackOutcome   `json:"video"`
	Audio     []TrackOutcome `json:"audio,omitempty"`
	Frames    int64          `json:"frames"`
	Assembled bool           `json:"assembled"`
	Err       error          `json:"-"`
}
