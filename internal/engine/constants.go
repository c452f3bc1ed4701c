package engine

import "os"

const (
	filePerm = 0644

	// The log is opened without O_APPEND: appends are positional writes at
	// the tracked end offset.
	logOpenFlags     = os.O_CREATE | os.O_RDWR
	compactOpenFlags = os.O_CREATE | os.O_RDWR | os.O_TRUNC
)
