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
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"golang.org/x/term"
)

// testTerminal reads nothing and records everything written to it
type testTerminal struct {
	out *bytes.Buffer
}

func (t testTerminal) Read(_ []byte) (int, error) { return 0, io.EOF }

func (t testTerminal) Write(p []byte) (int, error) { return t.out.Write(p) }

func newTestState(t *testing.T) (*term.Terminal, *bytes.Buffer, *AnalyzerState) {
	session, err := tools.OpenSession("../testdata/config.yaml", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatalf("could not open session: %v", err)
	}
	out := &bytes.Buffer{}
	tt := term.NewTerminal(testTerminal{out: out}, "> ")
	c := NewAnalyzerState(session)
	c.Logger.SetAllOutput(io.Discard)
	return tt, out, c
}

func TestInterpret(t *testing.T) {
	tt, out, c := newTestState(t)
	tests := []struct {
		command  string
		expected []string
	}{
		{"pts r1", []string{"-> {o1, o2}"}},
		{"dda r1 --mode context", []string{"-> {o1}", "(whole-program: {o1, o2})"}},
		{"alias r1 r2 --mode context", []string{"r1 no-alias r2"}},
		{"alias r1 x", []string{"r1 may-alias x"}},
		{"funptr", []string{"-> {loop} (whole-program: {id, loop})"}},
		{"cycles", []string{"loop -> loop"}},
		{"ls ^r", []string{"r1", "r2", "r3"}},
		{"stats", []string{"andersen", "context", "queries: "}},
		{"pts nope", []string{"no value named \"nope\""}},
		{"dda r1 --mode andersen", []string{"not a demand-driven analysis"}},
		{"pts r1 --mode cfl", []string{"unknown mode \"cfl\" for pts"}},
		{"dda r1 --mode", []string{"option --mode expects a value"}},
		{"frobnicate", []string{"not recognized", "Commands:"}},
	}
	for _, test := range tests {
		out.Reset()
		if interpret(tt, c, test.command) {
			t.Fatalf("%q should not stop the cli", test.command)
		}
		for _, s := range test.expected {
			if !strings.Contains(out.String(), s) {
				t.Errorf("output of %q should contain %q, got:\n%s", test.command, s, out.String())
			}
		}
	}
	if !interpret(tt, c, "exit") {
		t.Errorf("exit should stop the cli")
	}
}

func TestClientsAreShared(t *testing.T) {
	_, _, c := newTestState(t)
	a, err := c.Client("path")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Client("path")
	if a != b {
		t.Errorf("the clients of a mode should be created once")
	}
	if _, err := c.Client("cfl"); err == nil {
		t.Errorf("expected an error for an unknown mode")
	}
	if modes := c.Modes(); len(modes) != 1 || modes[0] != "path" {
		t.Errorf("unexpected modes %v", modes)
	}
}

func TestComplete(t *testing.T) {
	candidates := []string{"alias", "cycles", "r1", "r2", "res"}
	for _, test := range []struct {
		prefix string
		want   string
		ok     bool
	}{
		{"al", "alias", true},
		{"r", "r", false},
		{"re", "res", true},
		{"z", "", false},
	} {
		got, ok := complete(test.prefix, candidates)
		if ok != test.ok || (ok && got != test.want) {
			t.Errorf("complete(%q) = %q, %t; want %q, %t", test.prefix, got, ok, test.want, test.ok)
		}
	}
}
