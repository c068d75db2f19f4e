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
	"reflect"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  Command
	}{
		{
			input: "pts x",
			want:  Command{Name: "pts", Args: []string{"x"}, NamedArgs: map[string]string{}, Flags: map[string]bool{}},
		},
		{
			input: "alias a b --mode context -v",
			want: Command{
				Name:      "alias",
				Args:      []string{"a", "b"},
				NamedArgs: map[string]string{"mode": "context"},
				Flags:     map[string]bool{"v": true},
			},
		},
		{
			input: "dda --mode=path r1",
			want: Command{
				Name:      "dda",
				Args:      []string{"r1"},
				NamedArgs: map[string]string{"mode": "path"},
				Flags:     map[string]bool{},
			},
		},
		{
			input: "pts -- -x --y",
			want: Command{
				Name:      "pts",
				Args:      []string{"-x", "--y"},
				NamedArgs: map[string]string{},
				Flags:     map[string]bool{},
			},
		},
		{
			input: `ls "main.*" -o`,
			want: Command{
				Name:      "ls",
				Args:      []string{"main.*"},
				NamedArgs: map[string]string{},
				Flags:     map[string]bool{"o": true},
			},
		},
		{
			input: "",
			want:  Command{NamedArgs: map[string]string{}, Flags: map[string]bool{}},
		},
	}
	for _, test := range tests {
		got, err := ParseCommand(test.input)
		if err != nil {
			t.Errorf("ParseCommand(%q) failed: %v", test.input, err)
			continue
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", test.input, got, test.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	for input, msg := range map[string]string{
		`pts "x`:         "could not split",
		"dda r1 --mode": "--mode expects a value",
	} {
		if _, err := ParseCommand(input); err == nil || !strings.Contains(err.Error(), msg) {
			t.Errorf("ParseCommand(%q) should fail with %q, got %v", input, msg, err)
		}
	}
}

func TestCommandMode(t *testing.T) {
	cmd, _ := ParseCommand("alias a b")
	if m, err := cmd.Mode("flow", allModes...); err != nil || m != "flow" {
		t.Errorf("expected the default mode, got %q, %v", m, err)
	}
	cmd, _ = ParseCommand("alias a b --mode path")
	if m, err := cmd.Mode("flow", allModes...); err != nil || m != "path" {
		t.Errorf("expected path, got %q, %v", m, err)
	}
	cmd, _ = ParseCommand("dda a --mode andersen")
	if _, err := cmd.Mode("flow", ddaModes...); err == nil || !strings.Contains(err.Error(), "flow, context, path") {
		t.Errorf("expected an error listing the demand-driven modes, got %v", err)
	}
}
