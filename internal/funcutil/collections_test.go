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

package funcutil

import (
	"strconv"
	"testing"

	"golang.org/x/exp/slices"
)

func TestMap(t *testing.T) {
	if Map[int, string](nil, strconv.Itoa) != nil {
		t.Errorf("mapping nil should return nil")
	}
	if got := Map([]int{1, 2, 3}, strconv.Itoa); !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("unexpected result %v", got)
	}
}

func TestContainsAndReverse(t *testing.T) {
	a := []string{"flow", "context", "path"}
	if !Contains(a, "path") || Contains(a, "andersen") {
		t.Errorf("unexpected Contains result on %v", a)
	}
	Reverse(a)
	if !slices.Equal(a, []string{"path", "context", "flow"}) {
		t.Errorf("unexpected reversed slice %v", a)
	}
	var empty []int
	Reverse(empty)
}
