// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-pta/analysis/pag"
	"github.com/awslabs/ar-go-pta/analysis/pts"
	"golang.org/x/term"
)

// WriteErr prints the message in red on its own line
func WriteErr(tt *term.Terminal, format string, a ...any) {
	writeln(tt, tt.Escape.Red, format, a...)
}

// WriteSuccess prints the message in green on its own line
func WriteSuccess(tt *term.Terminal, format string, a ...any) {
	writeln(tt, tt.Escape.Green, format, a...)
}

// writeFmt prints format as is when there are no arguments, so that messages containing '%' are left untouched
func writeFmt(tt *term.Terminal, format string, a ...any) {
	if len(a) == 0 {
		fmt.Fprint(tt, format)
		return
	}
	fmt.Fprintf(tt, format, a...)
}

func writeln(tt *term.Terminal, escape []byte, format string, a ...any) {
	tt.Write(escape)
	writeFmt(tt, format, a...)
	fmt.Fprintf(tt, "%s\n", tt.Escape.Reset)
}

type displayElement struct {
	content string
	escape  []byte
}

// writeEntries writes the entries in columns fitting the width of the terminal, filled column by column
func writeEntries(tt *term.Terminal, entries []displayElement, prefix string) {
	if len(entries) == 0 {
		return
	}
	width := 0
	for _, entry := range entries {
		if len(entry.content) > width {
			width = len(entry.content)
		}
	}
	width += 3
	cols := state.TermWidth / width
	if cols < 1 {
		cols = 1
	}
	rows := (len(entries) + cols - 1) / cols
	for row := 0; row < rows; row++ {
		writeFmt(tt, prefix)
		for i := row; i < len(entries); i += rows {
			writeFmt(tt, "%s%-*s%s", entries[i].escape, width, entries[i].content, tt.Escape.Reset)
		}
		writeFmt(tt, "\n")
	}
}

// ptsLines lays out "head {o1, o2, ...}" on lines of at most width characters. A set that does not fit is broken
// after a comma, and the continuation lines are aligned after the opening brace. A width of zero or less means
// no limit. An object name longer than the line is never split.
func ptsLines(head string, objs []string, width int) []string {
	if len(objs) == 0 {
		return []string{head + "{}"}
	}
	indent := strings.Repeat(" ", len(head)+1)
	var lines []string
	line := head + "{"
	for i, name := range objs {
		item := name + ","
		if i == len(objs)-1 {
			item = name + "}"
		}
		switch {
		case i == 0:
		case width > 0 && len(line)+1+len(item) > width:
			lines = append(lines, line)
			line = indent
		default:
			line += " "
		}
		line += item
	}
	return append(lines, line)
}

// writePts writes the points-to set of the pointer name, wrapping the set to the width of the terminal. The suffix
// is appended to the last line.
func writePts(tt *term.Terminal, prog *pag.Program, name string, set *pts.PointsTo, suffix string) {
	var objs []string
	set.ForEach(func(o pag.NodeID) {
		objs = append(objs, prog.Node(o).Name)
	})
	lines := ptsLines(name+" -> ", objs, state.TermWidth)
	for i, line := range lines {
		if i == 0 {
			// color the pointer name only
			writeFmt(tt, "%s%s%s%s", tt.Escape.Cyan, name, tt.Escape.Reset, line[len(name):])
		} else {
			writeFmt(tt, "\n%s", line)
		}
	}
	writeFmt(tt, "%s\n", suffix)
}
