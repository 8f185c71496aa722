/*
 * sim65 - Machine profile: accumulated configuration errors
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

package profile

import (
	"fmt"
	"strings"
)

// ConfigError collects every structural violation found while
// validating a profile, rather than the teacher's one-line-at-a-time
// "line: %d" reporting.
type ConfigError struct {
	Violations []string
}

// Addf appends a formatted violation.
func (e *ConfigError) Addf(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

func (e *ConfigError) Error() string {
	if len(e.Violations) == 1 {
		return "profile: " + e.Violations[0]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "profile: %d violations:\n", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("  - ")
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}
