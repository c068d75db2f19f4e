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

func TestPtsLines(t *testing.T) {
	objs := []string{"alpha", "beta", "gamma", "delta"}
	tests := []struct {
		width int
		want  []string
	}{
		{0, []string{"p -> {alpha, beta, gamma, delta}"}},
		{80, []string{"p -> {alpha, beta, gamma, delta}"}},
		{20, []string{
			"p -> {alpha, beta,",
			"      gamma, delta}",
		}},
		{8, []string{
			"p -> {alpha,",
			"      beta,",
			"      gamma,",
			"      delta}",
		}},
	}
	for _, test := range tests {
		if got := ptsLines("p -> ", objs, test.width); !reflect.DeepEqual(got, test.want) {
			t.Errorf("width %d: got %q, want %q", test.width, got, test.want)
		}
	}
	if got := ptsLines("p -> ", nil, 10); !reflect.DeepEqual(got, []string{"p -> {}"}) {
		t.Errorf("expected an empty set, got %q", got)
	}
}

func TestWritePtsWrapsToTerminal(t *testing.T) {
	tt, out, c := newTestState(t)
	defer func(w int) { state.TermWidth = w }(state.TermWidth)
	state.TermWidth = 12
	v, err := c.Lookup("r1")
	if err != nil {
		t.Fatal(err)
	}
	writePts(tt, c.Program.Program, "r1", c.Pre.Pts(v), "")
	if got := out.String(); !strings.Contains(got, "-> {o1,") || !strings.Contains(got, "\n       o2}") {
		t.Errorf("expected the set of r1 on two lines, got:\n%q", got)
	}
}
