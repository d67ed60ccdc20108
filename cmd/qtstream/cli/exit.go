// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError ends the process with Code without printing an error line.
// Commands return it when a non-zero exit is an answer rather than a
// failure, and they have already written their own output: "qtstream
// decode" returns 2 when the stream ended mid-message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
