/*
Copyright 2024 Golava, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package prompt implements the CLI's interactive questions: free form
// input, yes/no confirmation, option picking and no-echo passwords.
package prompt

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gravitational/trace"
	"golang.org/x/term"
)

// Input prompts for one line of input.
func Input(ctx context.Context, out io.Writer, in io.Reader, question string) (string, error) {
	fmt.Fprintf(out, "%s: ", question)
	answer, err := readLine(ctx, in)
	return answer, trace.Wrap(err)
}

// Confirmation prompts for a yes/no answer. Anything but "y"/"yes"
// counts as no.
func Confirmation(ctx context.Context, out io.Writer, in io.Reader, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := readLine(ctx, in)
	if err != nil {
		return false, trace.Wrap(err)
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// PickOne prompts until the answer matches one of options.
func PickOne(ctx context.Context, out io.Writer, in io.Reader, question string, options []string) (string, error) {
	for {
		fmt.Fprintf(out, "%s [%s]: ", question, strings.Join(options, ", "))
		answer, err := readLine(ctx, in)
		if err != nil {
			return "", trace.Wrap(err)
		}
		for _, option := range options {
			if strings.EqualFold(strings.TrimSpace(answer), option) {
				return option, nil
			}
		}
		fmt.Fprintf(out, "%q is not a valid option, choose one of %v\n", answer, options)
	}
}

// Password prompts for a secret. When in is a terminal the echo is
// suppressed, otherwise (pipes, tests) it falls back to a line read.
func Password(ctx context.Context, out io.Writer, in io.Reader, question string) (string, error) {
	fmt.Fprintf(out, "%s: ", question)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		defer fmt.Fprintln(out)
		data, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", trace.Wrap(err)
		}
		return string(data), nil
	}
	answer, err := readLine(ctx, in)
	return answer, trace.Wrap(err)
}

// readLine reads one byte at a time so consecutive prompts on the same
// reader never swallow each other's input.
func readLine(ctx context.Context, in io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", trace.Wrap(err)
	}
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			line = append(line, buf[0])
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				break
			}
			return "", trace.Wrap(err)
		}
	}
	return strings.TrimRight(string(line), "\r"), nil
}
