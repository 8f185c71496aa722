/*
 * sim65 - Wrapper for slog
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

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/retrobus/sim65/util/debug"
)

// subsystemHandler wraps a slog.TextHandler and gates Debug-level
// records by util/debug's per-subsystem flag registry: a record
// logged through a logger named by WithGroup("scheduler") is only
// emitted at Debug level when debug.Enabled("scheduler") is true,
// since more than one Machine's subsystems share the same process and
// each wants independent control over which of its diagnostics are
// noisy. Groupless loggers and records above Debug are never gated.
type subsystemHandler struct {
	h         slog.Handler
	subsystem string
}

func (h *subsystemHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level <= slog.LevelDebug && h.subsystem != "" && !debug.Enabled(h.subsystem) {
		return false
	}
	return h.h.Enabled(ctx, level)
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.h.Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{h: h.h.WithAttrs(attrs), subsystem: h.subsystem}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{h: h.h.WithGroup(name), subsystem: name}
}

// New returns a *slog.Logger writing text-formatted records to w,
// gating Debug-level output per subsystem name (see subsystemHandler)
// once a caller names one with Logger.WithGroup. Machine, MainBus and
// Scheduler accept a *slog.Logger at construction (machine.NewBuilder
// substitutes slog.Default() for nil); trap.Registry takes none. No
// constructor in this module calls this package's Default().
func New(w io.Writer) *slog.Logger {
	return slog.New(&subsystemHandler{h: slog.NewTextHandler(w, nil)})
}

// Default returns the package-wide fallback logger used when a
// subsystem is constructed without an explicit *slog.Logger.
func Default() *slog.Logger {
	return New(os.Stderr)
}
