package space

import (
	"os"

	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/logfile"
)

// OpenLog reads an entire redo-log file into memory and wraps it as a
// logfile.Reader, exposing Component L's block scan through the
// public API (spec.md §4.L). Redo-log files are small relative to
// tablespace files, so reading the whole thing up front is simpler
// than streaming it block by block.
func OpenLog(path string) (*logfile.Reader, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "space: reading log file")
	}
	return logfile.NewReader(buf), nil
}
