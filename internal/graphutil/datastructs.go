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

import "github.com/awslabs/ar-go-pta/internal/funcutil"

// Tree is a simple generic implementation of a tree
type Tree[T any] struct {
	Parent   *Tree[T]
	Children []*Tree[T]
	Label    T
	depth    int
}

// NewTree returns a new tree with the labels of the type provided
func NewTree[T any](rootLabel T) *Tree[T] {
	return &Tree[T]{
		Parent:   nil,
		Children: nil,
		Label:    rootLabel,
	}
}

// AddChild adds a new child labelled label to t and returns it
func (t *Tree[T]) AddChild(label T) *Tree[T] {
	newChild := &Tree[T]{
		Parent:   t,
		Children: nil,
		Label:    label,
		depth:    t.depth + 1,
	}
	t.Children = append(t.Children, newChild)
	return newChild
}

// Depth returns the distance between t and the root of its tree
func (t *Tree[T]) Depth() int {
	return t.depth
}

// FindChild returns the child of t labelled label, adding it if it does not exist. Trees built only with FindChild
// intern label sequences: two equal paths from the root always end at the same node.
func FindChild[T comparable](t *Tree[T], label T) *Tree[T] {
	for _, c := range t.Children {
		if c.Label == label {
			return c
		}
	}
	return t.AddChild(label)
}

// Path returns the labels from the child of the root down to t
func Path[T any](t *Tree[T]) []T {
	var path []T
	for cur := t; cur.Parent != nil; cur = cur.Parent {
		path = append(path, cur.Label)
	}
	funcutil.Reverse(path)
	return path
}
