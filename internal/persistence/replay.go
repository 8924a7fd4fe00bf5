// Package persistence decodes the persisted suggestion dataset into records.
package persistence

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// maxLineSize bounds a single JSON Lines record.
const maxLineSize = 16 << 20

// Replay calls applyFunc for every non-blank line of r, in order, stopping at
// the first error. The line passed to applyFunc is only valid during the call.
func Replay(r io.Reader, applyFunc func(line int, data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		if err := applyFunc(line, data); err != nil {
			return err
		}
	}
	return errors.Wrap(scanner.Err(), "scan dataset")
}
