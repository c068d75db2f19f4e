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

package dda

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
	"github.com/awslabs/ar-go-pta/internal/funcutil"
)

func TestQuery(t *testing.T) {
	s, err := tools.OpenSession("../testdata/config.yaml", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	pre := andersen.Analyze(s.Program.Program, s.Config, s.Logger)

	var out bytes.Buffer
	stats, err := Query(&out, pre, s.Config, s.Logger, config.ModeContext, s.Config.QueriesFor(config.ModeContext))
	if err != nil {
		t.Fatal(err)
	}
	if stats.NumQueries != 2 {
		t.Errorf("expected 2 queries, got %d", stats.NumQueries)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "r1 -> {o1}") || !strings.HasPrefix(lines[1], "r2 -> {o2}") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	if _, err := Query(&out, pre, s.Config, s.Logger, config.ModeFlow, []string{"nope"}); !errors.Is(err,
		alias.ErrUnknownValue) {
		t.Errorf("expected an unknown value error, got %v", err)
	}
	if _, err := Query(&out, pre, s.Config, s.Logger, "cfl", nil); !errors.Is(err, alias.ErrUnknownMode) {
		t.Errorf("expected an unknown mode error, got %v", err)
	}
}

func TestDefaultQueries(t *testing.T) {
	s, err := tools.OpenSession("", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	names := DefaultQueries(andersen.Analyze(s.Program.Program, s.Config, s.Logger))
	for _, name := range []string{"x", "y", "r1", "r2", "p", "fp"} {
		if !funcutil.Contains(names, name) {
			t.Errorf("%s should be queried by default, got %v", name, names)
		}
	}
	if funcutil.Contains(names, "lr") {
		t.Errorf("lr points to nothing and should not be queried")
	}
}
