package interview

import (
	"context"

	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/ipc"
)

// Mux exposes the interview to other rehearse processes.
func (iv *Interview) Mux() ipc.Mux {
	return ipc.Mux{
		ipc.CommandStatus: func(context.Context, ipc.Request) ipc.Response {
			return iv.status("")
		},
		ipc.CommandToggle: func(ctx context.Context, _ ipc.Request) ipc.Response {
			if err := iv.Toggle(ctx); err != nil {
				return iv.failure(err)
			}
			return iv.status("toggled")
		},
		ipc.CommandNext: func(context.Context, ipc.Request) ipc.Response {
			iv.Next()
			return iv.status("")
		},
		ipc.CommandPrevious: func(context.Context, ipc.Request) ipc.Response {
			iv.Previous()
			return iv.status("")
		},
		ipc.CommandJump: func(_ context.Context, req ipc.Request) ipc.Response {
			if req.Index == nil {
				return ipc.Response{OK: false, Error: "jump requires an index"}
			}
			iv.Jump(*req.Index)
			return iv.status("")
		},
	}
}

func (iv *Interview) status(message string) ipc.Response {
	state := iv.Snapshot()
	current := state.Current
	resp := ipc.Response{
		OK:       true,
		State:    string(state.Phase),
		Total:    state.Progress.Total,
		Answered: state.Progress.Answered,
		Message:  message,
	}
	if a, ok := state.CurrentAnswer(); ok {
		resp.Question = &current
		resp.State = string(a.Status)
		if resp.Message == "" {
			resp.Message = StatusLine(a)
		}
	}
	return resp
}

func (iv *Interview) failure(err error) ipc.Response {
	resp := iv.status("")
	resp.OK = false
	resp.Message = ""
	resp.Error = fault.UserMessage(err)
	return resp
}
