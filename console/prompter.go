package console

import (
	"github.com/peterh/liner"
)

// UserPrompter is the interface a console front-end implements to collect
// one line of input for a given prompt string.
type UserPrompter interface {
	PromptInput(prompt string) (string, error)
	AppendHistory(command string)
}

// TerminalPrompter is a liner-backed UserPrompter for an interactive
// terminal session.
type TerminalPrompter struct {
	state *liner.State
}

// NewTerminalPrompter returns a TerminalPrompter with tab completion
// disabled (there is no keyword table to complete against here) and
// multi-line mode enabled, matching the teacher's terminal setup.
func NewTerminalPrompter(prompt string) *TerminalPrompter {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetMultiLineMode(true)
	return &TerminalPrompter{state: state}
}

func (t *TerminalPrompter) PromptInput(prompt string) (string, error) {
	return t.state.Prompt(prompt)
}

func (t *TerminalPrompter) AppendHistory(command string) {
	t.state.AppendHistory(command)
}

// Close releases the underlying terminal state.
func (t *TerminalPrompter) Close() error { return t.state.Close() }
