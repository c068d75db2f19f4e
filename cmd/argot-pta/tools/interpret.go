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

package tools

import "regexp"

// Captures errors happening before any analysis starts (program could not load)
var regexCouldNotLoad = regexp.MustCompile("could not load program")

// Captures the kind of error that happen when you put a flag at the end instead of the program file
var namedFilesMustBeYamlFiles = regexp.MustCompile("named files must be .yaml files: -(\\w)")

// Captures programs referring to undeclared names
var malformedProgram = regexp.MustCompile("malformed program: .* is not (defined|declared)")

// Captures queries on values that do not exist
var unknownValue = regexp.MustCompile("(no value named|unknown value):? \"[^\"]*\"")

// Captures an unknown analysis mode
var unknownMode = regexp.MustCompile("unknown analysis mode")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexCouldNotLoad.MatchString(errMsg) {
		if namedFilesMustBeYamlFiles.MatchString(errMsg) {
			return "all command line flags should be before the path to the program file to analyze"
		}
		if malformedProgram.MatchString(errMsg) {
			return "values, objects and functions must be declared in the program file before they are used"
		}
		return "make sure you have provided the path to exactly one program file in yaml format"
	}
	if unknownValue.MatchString(errMsg) {
		return "queries name values by the destination of the statement defining them, or by parameter name"
	}
	if unknownMode.MatchString(errMsg) {
		return "the analysis mode must be one of andersen, flow, context or path"
	}
	return ""
}
