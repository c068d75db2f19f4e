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

package alias

import (
	"bytes"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
)

func TestAnswer(t *testing.T) {
	s, err := tools.OpenSession("../testdata/config.yaml", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	pre := andersen.Analyze(s.Program.Program, s.Config, s.Logger)
	for mode, first := range map[string]string{
		alias.ModeAndersen: "may-alias",
		config.ModeFlow:    "may-alias",
		config.ModeContext: "no-alias",
		config.ModePath:    "no-alias",
	} {
		var out bytes.Buffer
		if err := Answer(&out, pre, s.Config, s.Logger, mode); err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("%s: expected two answers, got:\n%s", mode, out.String())
		}
		if !strings.Contains(lines[0], first) || !strings.Contains(lines[1], "may-alias") {
			t.Errorf("%s: unexpected answers:\n%s", mode, out.String())
		}
	}
}
