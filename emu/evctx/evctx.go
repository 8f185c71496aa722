/*
 * sim65 - Event context: the bundle handed to every scheduled callback
 *
 * Copyright 2026, sim65 contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package evctx is the concrete EventContext (spec C11): the bundle
// of scheduler, signal fabric, and bus a device's callback receives,
// plus a type-keyed component bucket. It is the one package allowed
// to import both emu/scheduler and the subsystems scheduler.Context
// deliberately stays opaque about, which is what keeps scheduler free
// of a dependency on evctx.
package evctx

import (
	"sync"

	"github.com/retrobus/sim65/emu/bus"
	"github.com/retrobus/sim65/emu/scheduler"
	"github.com/retrobus/sim65/emu/signal"
)

// Context bundles the subsystems a device callback needs plus an
// arbitrary named component bucket (spec's GetComponent<T>, reworked
// per Design Note into an explicit-key registry with a typed
// accessor instead of reflection).
type Context struct {
	Scheduler *scheduler.Scheduler
	Signals   *signal.Fabric
	Bus       *bus.MainBus

	mu         sync.RWMutex
	components map[string]any
}

// New returns a Context wired to the given subsystems.
func New(sched *scheduler.Scheduler, signals *signal.Fabric, mainBus *bus.MainBus) *Context {
	return &Context{
		Scheduler:  sched,
		Signals:    signals,
		Bus:        mainBus,
		components: make(map[string]any),
	}
}

// RegisterComponent stores value under key, overwriting any previous
// registration. Typically called once per component during
// machine.Builder.Build().
func RegisterComponent(ctx *Context, key string, value any) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.components[key] = value
}

// GetComponent retrieves the component registered under key and
// asserts it to T. ok is false if key was never registered or the
// registered value isn't a T.
func GetComponent[T any](ctx *Context, key string) (T, bool) {
	ctx.mu.RLock()
	v, found := ctx.components[key]
	ctx.mu.RUnlock()
	if !found {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
