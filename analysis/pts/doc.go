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

/*
Package pts contains the points-to sets and the points-to data stores used by the pointer analyses.

A [PointsTo] is a sparse set of object ids. A [PTData] maps keys (node ids, context-qualified ids, probes) to
points-to sets. Two backends are provided:

  - [Mutable]: every key owns its set, unions are done in place.
  - [Persistent]: every key holds a [Handle] into a [PersistentCache]. The cache stores every distinct set once,
    so that structurally equal sets have equal handles, and memoizes unions, intersections and complements on
    pairs of handles.

[MutableDiff] and [PersistentDiff] additionally track the part of each set that has already been propagated, which
lets a fixpoint solver only propagate differences. [Versioned] keeps two key spaces, one for top-level variables and
one for version-qualified (address-taken) keys.
*/
package pts
