// Copyright 2015 The go-ethereum Authors
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

// Package log provides the structured, leveled logger used throughout the
// coordinator. Calls look like log.Info("message", "key", value, ...); pairs
// are rendered as key=value and the whole line is colorized by level when
// the output is a terminal.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is the level of a log line, ordered from most to least severe.
type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "?????"
	}
}

func (l Lvl) color() *color.Color {
	switch l {
	case LvlError:
		return color.New(color.FgRed, color.Bold)
	case LvlWarn:
		return color.New(color.FgYellow)
	case LvlInfo:
		return color.New(color.FgGreen)
	case LvlDebug:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}

var (
	root = &Logger{
		level: LvlInfo,
		out:   colorableStdout(),
		color: isatty.IsTerminal(os.Stdout.Fd()),
	}
)

func colorableStdout() io.Writer {
	return colorable.NewColorableStdout()
}

// Logger writes leveled, structured log lines. The zero value is not usable;
// use Root() or New().
type Logger struct {
	mu    sync.Mutex
	level Lvl
	out   io.Writer
	color bool
	ctx   []interface{}
}

// Root returns the process-wide default logger.
func Root() *Logger { return root }

// New returns a logger that always includes the given key/value pairs.
func New(ctx ...interface{}) *Logger {
	return &Logger{level: root.level, out: root.out, color: root.color, ctx: ctx}
}

// SetLevel sets the minimum level the root logger emits.
func SetLevel(l Lvl) {
	root.mu.Lock()
	defer root.mu.Unlock()
	root.level = l
}

// SetOutput redirects the root logger, disabling color detection (callers
// that want color against a non-stdout writer should wrap it themselves).
func SetOutput(w io.Writer) {
	root.mu.Lock()
	defer root.mu.Unlock()
	root.out = w
	root.color = false
}

func (lg *Logger) write(lvl Lvl, msg string, kv []interface{}) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lvl > lg.level {
		return
	}

	ts := time.Now().Format("2006-01-02T15:04:05.000")
	caller := ""
	if cs := stack.Callers(); len(cs) > 3 {
		caller = fmt.Sprintf("%+v", cs[3])
	}

	levelStr := lvl.String()
	if lg.color {
		levelStr = lvl.color().Sprintf("%-5s", levelStr)
	} else {
		levelStr = fmt.Sprintf("%-5s", levelStr)
	}

	line := fmt.Sprintf("%s [%s] %s", ts, levelStr, msg)
	all := append(append([]interface{}{}, lg.ctx...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		line += fmt.Sprintf(" %v=%v", all[i], all[i+1])
	}
	if caller != "" && lvl <= LvlDebug {
		line += fmt.Sprintf(" caller=%s", caller)
	}
	fmt.Fprintln(lg.out, line)
}

func (lg *Logger) Error(msg string, kv ...interface{}) { lg.write(LvlError, msg, kv) }
func (lg *Logger) Warn(msg string, kv ...interface{})  { lg.write(LvlWarn, msg, kv) }
func (lg *Logger) Info(msg string, kv ...interface{})  { lg.write(LvlInfo, msg, kv) }
func (lg *Logger) Debug(msg string, kv ...interface{}) { lg.write(LvlDebug, msg, kv) }
func (lg *Logger) Trace(msg string, kv ...interface{}) { lg.write(LvlTrace, msg, kv) }

// New returns a child logger that always includes extra key/value context.
func (lg *Logger) New(ctx ...interface{}) *Logger {
	return &Logger{level: lg.level, out: lg.out, color: lg.color, ctx: append(append([]interface{}{}, lg.ctx...), ctx...)}
}

// Package-level convenience functions operate on the root logger.
func Error(msg string, kv ...interface{}) { root.write(LvlError, msg, kv) }
func Warn(msg string, kv ...interface{})  { root.write(LvlWarn, msg, kv) }
func Info(msg string, kv ...interface{})  { root.write(LvlInfo, msg, kv) }
func Debug(msg string, kv ...interface{}) { root.write(LvlDebug, msg, kv) }
func Trace(msg string, kv ...interface{}) { root.write(LvlTrace, msg, kv) }
