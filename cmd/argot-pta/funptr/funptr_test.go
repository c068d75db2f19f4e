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

package funptr

import (
	"bytes"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-pta/analysis/alias"
	"github.com/awslabs/ar-go-pta/analysis/andersen"
	"github.com/awslabs/ar-go-pta/analysis/config"
	"github.com/awslabs/ar-go-pta/analysis/dda"
	"github.com/awslabs/ar-go-pta/cmd/argot-pta/tools"
)

func TestWrite(t *testing.T) {
	s, err := tools.OpenSession("", false, []string{"../testdata/program.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	pre := andersen.Analyze(s.Program.Program, s.Config, s.Logger)

	var out bytes.Buffer
	n, err := Write(&out, alias.NewFunptrClient(pre, alias.NewAndersen(pre)).Resolve())
	if err != nil || n != 0 {
		t.Errorf("the whole-program analysis cannot refine its own call graph, got %d refined (%v)", n, err)
	}

	client, err := alias.NewDDA(pre, s.Config, s.Logger, config.ModeFlow, &dda.Stats{})
	if err != nil {
		t.Fatal(err)
	}
	out.Reset()
	n, err = Write(&out, alias.NewFunptrClient(pre, client).Resolve())
	if err != nil || n != 1 {
		t.Errorf("expected one refined call, got %d (%v)", n, err)
	}
	if !strings.Contains(out.String(), "-> {loop} (whole-program: {id, loop})") {
		t.Errorf("unexpected output %s", out.String())
	}
}
