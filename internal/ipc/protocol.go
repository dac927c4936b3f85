// Package ipc lets other rehearse invocations drive a running interview
// over a unix socket using one JSON line per request and response.
package ipc

const (
	CommandStatus   = "status"
	CommandToggle   = "toggle"
	CommandNext     = "next"
	CommandPrevious = "previous"
	CommandJump     = "jump"
)

type Request struct {
	Command string `json:"command"`
	Index   *int   `json:"index,omitempty"`
}

type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Question *int   `json:"question,omitempty"`
	Total    int    `json:"total,omitempty"`
	Answered int    `json:"answered,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
