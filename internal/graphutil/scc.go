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

// StronglyConnectedComponents returns the strongly connected components of the graph given by nodes and
// successors, computed with Tarjan's algorithm. The order of the nodes inside a component is arbitrary, and the
// components are sorted so that successors come first: a component only reaches components that precede it.
// The depth-first search keeps its own stack of frames instead of recursing.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	type frame struct {
		node  T
		succs []T
		next  int
	}
	var (
		sccs    [][]T
		stack   []T
		frames  []frame
		onStack = map[T]bool{}
		index   = map[T]int{}
		lowlink = map[T]int{}
	)
	push := func(v T) {
		index[v] = len(index)
		lowlink[v] = index[v]
		stack = append(stack, v)
		onStack[v] = true
		frames = append(frames, frame{node: v, succs: successors(v)})
	}

	for _, root := range nodes {
		if _, seen := index[root]; seen {
			continue
		}
		push(root)
		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			v := f.node
			if f.next < len(f.succs) {
				w := f.succs[f.next]
				f.next++
				if _, seen := index[w]; !seen {
					push(w)
				} else if onStack[w] && index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
				continue
			}
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].node
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}
			if lowlink[v] != index[v] {
				continue
			}
			var scc []T
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}
	return sccs
}
