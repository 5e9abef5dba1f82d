package transcript

import (
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -source=sink.go -destination=mocks/sink.go -package=mocks
type Sink interface {
	// Write stores text under name. It must not overwrite an existing
	// record; the error then satisfies errors.Is(err, fs.ErrExist).
	Write(name string, text string) error
}

// DirSink writes each record to its own file inside Dir.
type DirSink struct {
	Dir string
}

func (s *DirSink) Write(name string, text string) error {
	path := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}
