package logging

import (
	"os"
)

// LogFile is an append-only log file.
type LogFile interface {
	Append(content []byte) (err error)
}

// LogFileSystem abstracts directory creation and log file opening so tests can
// run against an in-memory file system.
type LogFileSystem interface {
	MkDir(dirname string) error
	Open(name string) (f LogFile, err error)
}

// LogFileImpl appends to a file on the OS file system.
type LogFileImpl struct {
	f *os.File
}

// Append writes the given bytes to the end of the file.
func (fs *LogFileImpl) Append(content []byte) (err error) {
	_, err = fs.f.Write(content)
	return
}

// LogFileSystemImpl is the OS-backed LogFileSystem.
type LogFileSystemImpl struct {
}

// MkDir creates the directory along with any necessary parents. An existing
// directory is not an error.
func (fs *LogFileSystemImpl) MkDir(name string) error {
	return os.MkdirAll(name, 0777)
}

// Open opens the named file for appending, creating it if needed.
func (fs *LogFileSystemImpl) Open(name string) (ff LogFile, err error) {
	var f *os.File
	f, err = os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	ff = &LogFileImpl{
		f: f,
	}
	return
}
