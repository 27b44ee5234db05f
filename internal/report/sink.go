package report

import (
	"io"
	"os"
	"path/filepath"
)

// Sink is the destination of the final document. Open is called once per
// emission and the returned writer is always closed, whatever happens while
// writing.
type Sink struct {
	// Name identifies the sink in errors and logs.
	Name string
	// Open acquires the writer.
	Open func() (io.WriteCloser, error)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// WriterSink wraps a writer the caller owns; closing the sink leaves w open.
func WriterSink(name string, w io.Writer) Sink {
	return Sink{
		Name: name,
		Open: func() (io.WriteCloser, error) { return nopCloser{w}, nil },
	}
}

// StdoutSink writes to the process standard output.
func StdoutSink() Sink {
	return WriterSink("stdout", os.Stdout)
}

// FileSink creates (or truncates) path and closes it after the write.
func FileSink(path string) Sink {
	return Sink{
		Name: path,
		Open: func() (io.WriteCloser, error) {
			if dir := filepath.Dir(path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, err
				}
			}
			return os.Create(path)
		},
	}
}
