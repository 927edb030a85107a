// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package callable

import "github.com/google/uuid"

// Context is a logical execution context of the dynamic side: the main
// context or the context owned by a coroutine.
type Context struct {
	id uuid.UUID
	co *Coroutine
}

// NewContext creates a fresh main-style context.
func NewContext() *Context {
	return &Context{id: uuid.New()}
}

// ID returns the context's unique identifier.
func (c *Context) ID() uuid.UUID { return c.id }

// Coroutine returns the coroutine owning c, or nil.
func (c *Context) Coroutine() *Coroutine { return c.co }

// Suspended reports whether c belongs to a coroutine parked at a yield or
// killed by a failure. Such a context cannot host a direct call.
func (c *Context) Suspended() bool {
	return c.co != nil && (c.co.Yielded() || c.co.Failed())
}

func (c *Context) String() string {
	if c.co != nil {
		return "coroutine:" + c.id.String()
	}
	return "context:" + c.id.String()
}
