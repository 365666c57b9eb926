package console

import (
	"fmt"
	"strings"
)

// AdminHandler adapts an AdminAPI to rpc.Handler, answering the same three
// commands (status/pause/resume) a local JS console would call, but over
// the IPC line protocol for a remote console.
type AdminHandler struct {
	Admin AdminAPI
}

// HandleLine implements rpc.Handler.
func (h AdminHandler) HandleLine(line string) string {
	switch strings.TrimSpace(line) {
	case "status":
		return fmt.Sprintf("%+v", h.Admin.Status())
	case "pause":
		h.Admin.Pause()
		return "ok"
	case "resume":
		h.Admin.Resume()
		return "ok"
	default:
		return fmt.Sprintf("unknown command %q", line)
	}
}
