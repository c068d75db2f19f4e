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

package cli

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
	"golang.org/x/exp/slices"
)

// Command is a parsed line of the interactive analyzer
type Command struct {
	// Name is the name of the command (e.g. exit, pts, ...)
	Name string

	// Args are the positional arguments: pointer names, or regexes for ls
	Args []string

	// NamedArgs are the options given as --key value or --key=value
	NamedArgs map[string]string

	// Flags are the options given as -key
	Flags map[string]bool
}

// ParseCommand splits cmd into words with shell quoting, and parses a line of the form
// "pts r1 r2 --mode context -v". The first word is the name of the command. A word after "--" is always
// positional, so that pointers whose name starts with a dash can be queried.
// The error reports unbalanced quotes, and named arguments missing their value.
func ParseCommand(cmd string) (Command, error) {
	command := Command{NamedArgs: map[string]string{}, Flags: map[string]bool{}}
	words, err := shlex.Split(cmd)
	if err != nil {
		return command, fmt.Errorf("could not split %q: %v", cmd, err)
	}
	if len(words) == 0 {
		return command, nil
	}
	command.Name = words[0]
	optionsDone := false
	for i := 1; i < len(words); i++ {
		w := words[i]
		switch {
		case optionsDone || !strings.HasPrefix(w, "-"):
			command.Args = append(command.Args, w)
		case w == "--":
			optionsDone = true
		case strings.HasPrefix(w, "--"):
			key, value, hasValue := strings.Cut(w[2:], "=")
			if !hasValue {
				if i+1 == len(words) {
					return command, fmt.Errorf("option --%s expects a value", key)
				}
				i++
				value = words[i]
			}
			command.NamedArgs[key] = value
		default:
			command.Flags[w[1:]] = true
		}
	}
	return command, nil
}

// Mode returns the value of --mode, or def when the option is absent. The error reports a mode that is not in
// allowed.
func (c Command) Mode(def string, allowed ...string) (string, error) {
	mode, ok := c.NamedArgs["mode"]
	if !ok {
		return def, nil
	}
	if !slices.Contains(allowed, mode) {
		return "", fmt.Errorf("unknown mode %q for %s, expected one of %s", mode, c.Name, strings.Join(allowed, ", "))
	}
	return mode, nil
}
