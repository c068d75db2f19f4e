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

package graphutil

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/bits-and-blooms/bitset"
)

type intGraph map[int][]int

// checkComponents checks that sccs is a partition of the nodes of m into strongly connected sets, where no set
// reaches a set that comes after it
func checkComponents(m intGraph, sccs [][]int) error {
	position := map[int]int{}
	for i, scc := range sccs {
		for _, x := range scc {
			if _, dup := position[x]; dup {
				return fmt.Errorf("node %d is in two components of %v", x, m)
			}
			position[x] = i
		}
	}
	for x := range m {
		i, ok := position[x]
		if !ok {
			return fmt.Errorf("node %d is in no component of %v", x, m)
		}
		for y, j := range position {
			switch {
			case i == j && x != y && !reaches(m, x, y):
				return fmt.Errorf("%d does not reach %d in its component, in %v", x, y, m)
			case j > i && reaches(m, x, y):
				return fmt.Errorf("%d reaches %d of a later component, in %v", x, y, m)
			}
		}
	}
	return nil
}

func TestSCC(t *testing.T) {
	for _, tc := range []struct {
		graph intGraph
		num   int
	}{
		{intGraph{0: {0}}, 1},
		{intGraph{0: {}}, 1},
		{intGraph{0: {0, 1}, 1: {}}, 2},
		{intGraph{0: {1, 2}, 1: {3}, 2: {1}, 3: {}}, 4},
		{intGraph{0: {1, 2}, 1: {3}, 2: {1, 0}, 3: {}}, 3},
		{intGraph{0: {3, 1}, 1: {0}, 2: {1}, 3: {3}}, 3},
	} {
		sccs := StronglyConnectedComponents(nodesOf(tc.graph), succFunc(tc.graph))
		if err := checkComponents(tc.graph, sccs); err != nil {
			t.Error(err)
		}
		if len(sccs) != tc.num {
			t.Errorf("expected %d components in %v, got %v", tc.num, tc.graph, sccs)
		}
	}
	seeds := []struct {
		size, count int
		seed        int64
	}{{10, 100, 68348438}, {50, 10, 184618}, {100, 3, 4875934}}
	for _, s := range seeds {
		for i := 0; i < s.count; i++ {
			m := randomGraph(s.size, s.seed+int64(i))
			if err := checkComponents(m, StronglyConnectedComponents(nodesOf(m), succFunc(m))); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func TestSCCLongChain(t *testing.T) {
	const n = 200000
	succs := func(i int) []int {
		if i+1 < n {
			return []int{i + 1}
		}
		return []int{0}
	}
	sccs := StronglyConnectedComponents([]int{0}, succs)
	if len(sccs) != 1 || len(sccs[0]) != n {
		t.Errorf("expected one component of %d nodes, got %d components", n, len(sccs))
	}
}

func randomGraph(size int, seed int64) intGraph {
	m := map[int][]int{}
	r := rand.New(rand.NewSource(seed))
	for i := 0; i < size; i++ {
		m[i] = []int{}
		for j := 0; j < 3; j++ {
			if r.Float32() < 0.7 {
				m[i] = append(m[i], int(r.Int63()%int64(size)))
			}
		}
	}
	return m
}

// Computes whether y is reachable from x
func reaches(m map[int][]int, x, y int) bool {
	visited := map[int]bool{}
	var visit func(int)
	visit = func(n int) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, nn := range m[n] {
			visit(nn)
		}
	}
	visit(x)
	return visited[y]
}

// Return sorted nodes of a particular map
func nodesOf(m map[int][]int) []int {
	ks := []int{}
	for k := range m {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	return ks
}

// Returns a closure which gives the successors of a node, to satisfy the SCC API
func succFunc(m map[int][]int) func(int) []int {
	return func(k int) []int { return m[k] }
}

func sortedNodes(b interface {
	NextSet(uint) (uint, bool)
}) []int {
	var res []int
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		res = append(res, int(i))
	}
	return res
}

func nuutilaOf(m intGraph) *SCCDetector {
	return NewSCCDetector(func() []int { return nodesOf(m) }, succFunc(m))
}

// Nuutila's algorithm must find the same components as Tarjan's, in a topological order.
func TestNuutilaAgreesWithTarjan(t *testing.T) {
	check := func(m intGraph) {
		d := nuutilaOf(m)
		d.Find()
		tarjan := StronglyConnectedComponents(nodesOf(m), succFunc(m))
		if d.NumSCCs() != len(tarjan) {
			t.Fatalf("expected %d SCCs, got %d\nin:%v", len(tarjan), d.NumSCCs(), m)
		}
		for _, scc := range tarjan {
			rep := d.RepNode(scc[0])
			sort.Ints(scc)
			members := sortedNodes(d.SubNodes(rep))
			if fmt.Sprint(members) != fmt.Sprint(scc) {
				t.Fatalf("expected SCC %v, got %v\nin:%v", scc, members, m)
			}
			for _, x := range scc {
				if d.RepNode(x) != rep {
					t.Fatalf("nodes %v and %v of the same SCC have different representatives", x, scc[0])
				}
			}
		}
		// topological order: reverse it to get the order of Tarjan's (successors first)
		topo := d.TopoNodes()
		var sccs [][]int
		for i := len(topo) - 1; i >= 0; i-- {
			sccs = append(sccs, sortedNodes(d.SubNodes(topo[i])))
		}
		if err := checkComponents(m, sccs); err != nil {
			t.Fatalf("Error: %v", err)
		}
	}
	check(intGraph{0: {1}, 1: {2}, 2: {0}})
	check(intGraph{0: {0}, 1: {}})
	for i := 0; i < 100; i++ {
		check(randomGraph(10, 68348438+int64(i)))
	}
	for i := 0; i < 10; i++ {
		check(randomGraph(50, 184618+int64(i)))
	}
}

func TestNuutilaIsInCycle(t *testing.T) {
	d := nuutilaOf(intGraph{0: {0, 1}, 1: {2}, 2: {1}, 3: {0}})
	d.Find()
	for n, expected := range map[int]bool{0: true, 1: true, 2: true, 3: false} {
		if d.IsInCycle(n) != expected {
			t.Errorf("IsInCycle(%d) should be %v", n, expected)
		}
	}
	if d.RepNode(1) != d.RepNode(2) {
		t.Errorf("1 and 2 should have the same representative")
	}
}

func TestNuutilaCandidates(t *testing.T) {
	// 0 -> 1 -> 2 -> 0 is a cycle, but 2 is not a candidate
	m := intGraph{0: {1}, 1: {2}, 2: {0}, 3: {4}, 4: {3}}
	d := nuutilaOf(m)
	d.FindCandidates(bitset.New(5).Set(0).Set(1).Set(3).Set(4))
	if d.RepNode(0) == d.RepNode(1) {
		t.Errorf("0 and 1 are only strongly connected through a node outside the candidates")
	}
	if d.RepNode(3) != d.RepNode(4) {
		t.Errorf("3 and 4 should be merged")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("RepNode on a node that was not visited should panic")
		}
	}()
	d.RepNode(2)
}

func TestNuutilaFindClearsState(t *testing.T) {
	m := intGraph{0: {1}, 1: {0}}
	d := nuutilaOf(m)
	d.Find()
	if !d.IsInCycle(0) {
		t.Fatalf("0 should be in a cycle")
	}
	m[1] = []int{}
	d.Find()
	if d.IsInCycle(0) || d.RepNode(0) == d.RepNode(1) {
		t.Errorf("result of the second find should not depend on the first one")
	}
}
