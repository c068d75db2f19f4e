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

package config

const (
	// PtsBackendMutable selects points-to stores where each key owns its set
	PtsBackendMutable = "mutable"
	// PtsBackendPersistent selects hash-consed points-to stores sharing a cache of canonical sets
	PtsBackendPersistent = "persistent"

	// DefaultPtsBackend is the points-to backend used when none is specified
	DefaultPtsBackend = PtsBackendPersistent
	// DefaultFieldLimit is the number of field objects of a base object above which the object is collapsed
	DefaultFieldLimit = 512
	// DefaultSCCInterval is the number of nodes processed by the Andersen solver between two cycle detections
	DefaultSCCInterval = 1000
	// DefaultFlowBudget is the step budget of a flow-sensitive demand-driven query
	DefaultFlowBudget = 10000
	// DefaultCxtBudget is the step budget of a context-sensitive demand-driven query
	DefaultCxtBudget = 10000
	// DefaultPathBudget is the step budget of a path-sensitive demand-driven query
	DefaultPathBudget = 5000
	// DefaultMaxCxtLen is the maximum length of call strings
	DefaultMaxCxtLen = 3
	// DefaultMaxPathLen is the maximum number of value-flow edges remembered by a path condition
	DefaultMaxPathLen = 100000
	// DefaultFreeFunction is the function releasing heap objects when the config names none
	DefaultFreeFunction = "free"

	// ModeFlow is the flow-sensitive demand-driven analysis
	ModeFlow = "flow"
	// ModeContext is the context-sensitive demand-driven analysis
	ModeContext = "context"
	// ModePath is the path-sensitive demand-driven analysis
	ModePath = "path"
)
