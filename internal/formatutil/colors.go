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

// Package formatutil colors strings printed on a terminal.
package formatutil

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

var (
	Faint = Color("\033[2m%s\033[0m")
	Red   = Color("\033[1;31m%s\033[0m")
	Green = Color("\033[1;32m%s\033[0m")
)

// Color returns a function formatting its arguments with colorString when standard output is a terminal, and
// printing them plainly otherwise.
func Color(colorString string) func(...any) string {
	return func(args ...any) string {
		s := fmt.Sprint(args...)
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return s
		}
		return fmt.Sprintf(colorString, s)
	}
}
