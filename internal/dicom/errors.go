package dicom

import "fmt"

// directoryReadError signals that a path could not be enumerated as a DICOM
// directory. An empty series list is not an error.
type directoryReadError struct {
	dir string
	err error
}

func (e directoryReadError) Error() string {
	return fmt.Sprintf("read dicom directory %s: %v", e.dir, e.err)
}

func (e directoryReadError) Unwrap() error { return e.err }

// ErrDirectoryRead wraps err as a directory read failure for dir.
func ErrDirectoryRead(dir string, err error) error { return directoryReadError{dir: dir, err: err} }

// IsDirectoryRead reports whether err indicates an unreadable DICOM directory.
func IsDirectoryRead(err error) bool {
	_, ok := err.(directoryReadError)
	return ok
}

// indexOutOfRangeError signals a series index outside [0, count).
type indexOutOfRangeError struct {
	index int
	count int
}

func (e indexOutOfRangeError) Error() string {
	return fmt.Sprintf("series index %d out of range [0, %d)", e.index, e.count)
}

// ErrIndexOutOfRange constructs an out-of-range series index error.
func ErrIndexOutOfRange(index, count int) error { return indexOutOfRangeError{index: index, count: count} }

// IsIndexOutOfRange reports whether err indicates a bad series index.
func IsIndexOutOfRange(err error) bool {
	_, ok := err.(indexOutOfRangeError)
	return ok
}
