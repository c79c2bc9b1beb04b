// Package compiler threads program-wide and per-codelet compilation
// state through the transformation pipeline and reports per-codelet
// results instead of aborting the whole program on one failure (unless
// running in strict mode).
package compiler

import (
	"log/slog"

	"codeletc/hag"
)

// Context carries the explicitly-threaded counters, the single HAG a
// program compiles against, and the logger every pass needs. There is
// no package-level global state: a Context is created once per
// Program.Compile call and passed by pointer down through every pass
// and every codelet.
type Context struct {
	Program string
	Graph   *hag.Graph
	Logger  *slog.Logger

	globalOpIDCounter int64
}

// NewContext builds a Context for compiling program against g, logging
// to logger (or slog.Default() if nil).
func NewContext(program string, g *hag.Graph, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{Program: program, Graph: g, Logger: logger}
}

// NextGlobalOpID returns the next value from the program-wide op-id
// counter, shared across every codelet compiled under this Context.
func (c *Context) NextGlobalOpID() int64 {
	c.globalOpIDCounter++
	return c.globalOpIDCounter
}
