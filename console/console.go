// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package console implements an interactive JavaScript REPL over the
// coordinator's admin surface, adapted from the teacher's console.go: the
// same liner-prompted, otto-scripted Console/New/Interactive/Stop shape,
// with the JS <-> RPC bridge replaced by direct bindings onto AdminAPI
// (status/pause/resume) since there is no Ethereum-shaped JSON-RPC module
// set to flatten here — the admin surface is three methods, not a node's
// full API namespace.
package console

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/peterh/liner"
	"github.com/robertkrimen/otto"
)

var (
	onlyWhitespace = regexp.MustCompile(`^\s*$`)
	exitCommand    = regexp.MustCompile(`^\s*exit\s*;*\s*$`)
)

// HistoryFile is the file within the data directory storing input scrollback.
const HistoryFile = "history"

// DefaultPrompt is the default prompt line prefix.
const DefaultPrompt = "pool> "

// AdminAPI is the coordinator surface the console binds into its JS
// runtime as status()/pause()/resume(). It is the in-process equivalent of
// what rpc.Handler answers over the IPC socket for a remote console.
type AdminAPI interface {
	Status() interface{}
	Pause()
	Resume()
}

// Config tunes the console's behavior.
type Config struct {
	DataDir  string    // directory to store scrollback history
	Admin    AdminAPI  // admin surface bound into the JS runtime
	Prompt   string    // defaults to DefaultPrompt
	Prompter UserPrompter
	Printer  io.Writer // defaults to a colorable stdout
}

// Console is an otto-scripted JavaScript REPL bound to one AdminAPI.
type Console struct {
	vm       *otto.Otto
	prompt   string
	prompter UserPrompter
	histPath string
	history  []string
	printer  io.Writer
}

// New initializes the console's JS runtime and binds status/pause/resume.
func New(config Config) (*Console, error) {
	if config.Prompter == nil {
		config.Prompter = NewTerminalPrompter(DefaultPrompt)
	}
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	if config.Printer == nil {
		config.Printer = colorable.NewColorableStdout()
	}

	c := &Console{
		vm:       otto.New(),
		prompt:   config.Prompt,
		prompter: config.Prompter,
		printer:  config.Printer,
		histPath: filepath.Join(config.DataDir, HistoryFile),
	}
	if config.DataDir != "" {
		if err := os.MkdirAll(config.DataDir, 0700); err != nil {
			return nil, err
		}
		if data, err := ioutil.ReadFile(c.histPath); err == nil {
			c.history = strings.Split(string(data), "\n")
		}
	}
	if err := c.bind(config.Admin); err != nil {
		return nil, err
	}
	return c, nil
}

// bind exposes status(), pause() and resume() to the JS runtime, plus a
// console.log that writes through to c.printer.
func (c *Console) bind(admin AdminAPI) error {
	if err := c.vm.Set("status", func(call otto.FunctionCall) otto.Value {
		v, _ := c.vm.ToValue(fmt.Sprintf("%+v", admin.Status()))
		return v
	}); err != nil {
		return err
	}
	if err := c.vm.Set("pause", func(call otto.FunctionCall) otto.Value {
		admin.Pause()
		return otto.Value{}
	}); err != nil {
		return err
	}
	if err := c.vm.Set("resume", func(call otto.FunctionCall) otto.Value {
		admin.Resume()
		return otto.Value{}
	}); err != nil {
		return err
	}
	console, err := c.vm.Object(`console = {}`)
	if err != nil {
		return err
	}
	return console.Set("log", c.consoleOutput)
}

func (c *Console) consoleOutput(call otto.FunctionCall) otto.Value {
	parts := make([]string, len(call.ArgumentList))
	for i, arg := range call.ArgumentList {
		parts[i] = fmt.Sprintf("%v", arg)
	}
	fmt.Fprintln(c.printer, strings.Join(parts, " "))
	return otto.Value{}
}

// Evaluate runs statement and prints the result (or error) to the printer.
func (c *Console) Evaluate(statement string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(c.printer, "[console] error: %v\n", r)
		}
	}()
	v, err := c.vm.Run(statement)
	if err != nil {
		fmt.Fprintf(c.printer, "[console] error: %v\n", err)
		return err
	}
	if !v.IsUndefined() {
		fmt.Fprintln(c.printer, v.String())
	}
	return nil
}

// Interactive runs the read-eval-print loop until exit/Ctrl-C, in the same
// scheduler/abort-channel shape as the teacher's Console.Interactive.
func (c *Console) Interactive() {
	var (
		prompt    = c.prompt
		indents   = 0
		input     = ""
		scheduler = make(chan string)
	)
	go func() {
		for {
			line, err := c.prompter.PromptInput(<-scheduler)
			if err != nil {
				if err == liner.ErrPromptAborted {
					prompt, indents, input = c.prompt, 0, ""
					scheduler <- ""
					continue
				}
				close(scheduler)
				return
			}
			scheduler <- line
		}
	}()

	abort := make(chan os.Signal, 1)
	signal.Notify(abort, syscall.SIGINT, syscall.SIGTERM)

	for {
		scheduler <- prompt
		select {
		case <-abort:
			fmt.Fprintln(c.printer, "caught interrupt, exiting")
			return

		case line, ok := <-scheduler:
			if !ok || (indents <= 0 && exitCommand.MatchString(line)) {
				return
			}
			if onlyWhitespace.MatchString(line) {
				continue
			}
			input += line + "\n"

			indents = countIndents(input)
			if indents <= 0 {
				prompt = c.prompt
			} else {
				prompt = strings.Repeat(".", indents*3) + " "
			}
			if indents <= 0 {
				command := strings.TrimSpace(input)
				if len(command) > 0 && (len(c.history) == 0 || command != c.history[len(c.history)-1]) {
					c.history = append(c.history, command)
					c.prompter.AppendHistory(command)
				}
				c.Evaluate(input)
				input = ""
			}
		}
	}
}

// countIndents returns the brace/paren nesting depth of input, used to
// decide whether the REPL should keep reading a multi-line statement.
func countIndents(input string) int {
	var (
		indents     = 0
		inString    = false
		strOpenChar = ' '
		charEscaped = false
	)
	for _, ch := range input {
		switch ch {
		case '\\':
			if !charEscaped && inString {
				charEscaped = true
			}
		case '\'', '"':
			if inString && !charEscaped && strOpenChar == ch {
				inString = false
			} else if !inString && !charEscaped {
				inString = true
				strOpenChar = ch
			}
			charEscaped = false
		case '{', '(':
			if !inString {
				indents++
			}
			charEscaped = false
		case '}', ')':
			if !inString {
				indents--
			}
			charEscaped = false
		default:
			charEscaped = false
		}
	}
	return indents
}

// Stop flushes scrollback history to disk.
func (c *Console) Stop() error {
	if c.histPath == "" {
		return nil
	}
	if err := ioutil.WriteFile(c.histPath, []byte(strings.Join(c.history, "\n")), 0600); err != nil {
		return err
	}
	return os.Chmod(c.histPath, 0600)
}
