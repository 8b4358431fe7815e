package flyer

import (
	"encoding/base64"
	"fmt"
)

// Image is an encoded image crossing stage boundaries: raw bytes plus the
// MIME type they were produced with.
type Image struct {
	Data []byte
	Mime string
}

func (img Image) IsZero() bool {
	return len(img.Data) == 0
}

func (img Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", img.Mime, base64.StdEncoding.EncodeToString(img.Data))
}

type State int

const (
	StatePending State = iota
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Placeholder is one image slot in a layout awaiting a generated image.
// Prompt, Transparent, Width and Height are fixed at scan time; State,
// Result and FailureReason transition exactly once, Pending → Resolved
// or Pending → Failed.
type Placeholder struct {
	Index       int
	Prompt      string
	Transparent bool
	Width       int
	Height      int

	State         State
	Result        Image
	FailureReason string
}

const (
	StageLayout = "layout"
	StageImage  = "image"

	StatusStart  = "start"
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Event is one progress notification. Index is 1-based and set only for
// the image stage.
type Event struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Index  int    `json:"index,omitempty"`
	Total  int    `json:"total,omitempty"`
}

// Sink receives progress events. It must not block: the resolution loop
// calls it inline between external calls.
type Sink func(Event)

func emit(sink Sink, ev Event) {
	if sink != nil {
		sink(ev)
	}
}

type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
