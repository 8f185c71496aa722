/*
 * sim65 - Per-subsystem debug flag registry
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

// Package debug is a registry of named on/off flags. util/logger
// consults it to gate Debug-level records per subsystem; records at
// Warn and above (such as the scheduler's "late scheduling" warning)
// are never gated. The
// teacher gated a single global debug file behind a bitmask; here each
// subsystem registers its own named flag, since more than one Machine
// may be live in the same process and each wants independent control
// over which of its diagnostics are noisy.
package debug

import "sync"

var (
	mu    sync.Mutex
	flags = map[string]bool{}
)

// Enable turns a named flag on or off.
func Enable(name string, on bool) {
	mu.Lock()
	defer mu.Unlock()
	flags[name] = on
}

// Enabled reports whether a named flag is currently on. Unknown flags
// default to off.
func Enabled(name string) bool {
	mu.Lock()
	defer mu.Unlock()
	return flags[name]
}
