package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes formatted entries to stderr (errors and above) or
// stdout.
type ConsoleOutput struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewConsoleOutput creates a console output writing to stdout/stderr.
func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{out: os.Stdout, errOut: os.Stderr}
}

// Write implements Output.
func (c *ConsoleOutput) Write(entry *Entry, formatted []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := c.out
	if entry.Level >= ErrorLevel {
		w = c.errOut
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (c *ConsoleOutput) Close() error { return nil }

// WriterOutput adapts any io.Writer into an Output. Used by tests and for
// file-backed logging.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput wraps w as an Output.
func NewWriterOutput(w io.Writer) *WriterOutput { return &WriterOutput{w: w} }

// Write implements Output.
func (o *WriterOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(formatted)
	return err
}

// Close implements Output.
func (o *WriterOutput) Close() error {
	if c, ok := o.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FileOutput appends formatted entries to a file.
type FileOutput struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileOutput opens (creating if needed) the file at path for appending.
func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{file: f}, nil
}

// Write implements Output.
func (o *FileOutput) Write(_ *Entry, formatted []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.file.Write(formatted)
	return err
}

// Close implements Output.
func (o *FileOutput) Close() error { return o.file.Close() }
