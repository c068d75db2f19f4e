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

package pta

import (
	"bytes"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
)

func TestWrite(t *testing.T) {
	s, err := tools.OpenSession("", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	pre := andersen.Analyze(s.Program.Program, s.Config, s.Logger)
	var out bytes.Buffer
	if err := Write(&out, pre, true); err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{"r1 -> {o1, o2}", "fp -> {id, loop}", "call graph:"} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("expected %q in the output:\n%s", line, out.String())
		}
	}
}
