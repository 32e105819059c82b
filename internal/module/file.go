package module

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"portage/internal/record"
)

const copyChunk = 256 * 1024

// FileModule is the built-in mover for local file:// URLs.
type FileModule struct{}

func NewFileModule() *FileModule {
	return &FileModule{}
}

func (*FileModule) Name() string {
	return "builtin-file"
}

func (*FileModule) Protocols() []string {
	return []string{"file"}
}

func (m *FileModule) Info() *record.Record {
	r := record.New()
	r.Set("name", m.Name())
	r.Set("protocols", "file")
	r.Set("type", "builtin")
	return r
}

func (m *FileModule) Transfer(spec *record.Record) (Transfer, error) {
	src, err := url.Parse(spec.Get("src_url"))
	if err != nil {
		return nil, fmt.Errorf("bad src_url: %w", err)
	}

	dest, err := url.Parse(spec.Get("dest_url"))
	if err != nil {
		return nil, fmt.Errorf("bad dest_url: %w", err)
	}

	t := &fileTransfer{
		progress: make(chan *record.Record, 8),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go t.run(src.Path, dest.Path)
	return t, nil
}

type fileTransfer struct {
	progress chan *record.Record
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	exit     int
}

func (t *fileTransfer) Progress() <-chan *record.Record {
	return t.progress
}

func (t *fileTransfer) Wait() int {
	<-t.doneCh
	return t.exit
}

func (t *fileTransfer) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}

func (t *fileTransfer) run(srcPath, destPath string) {
	defer close(t.doneCh)
	defer close(t.progress)

	src, err := os.Open(srcPath)
	if err != nil {
		// A missing or unreadable source never heals on retry.
		t.fail(ExitNoRetry, fmt.Sprintf("cannot open source: %v", err))
		return
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(src)

	info, err := src.Stat()
	if err != nil {
		t.fail(1, fmt.Sprintf("cannot stat source: %v", err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		t.fail(1, fmt.Sprintf("cannot create destination dir: %v", err))
		return
	}

	dest, err := os.Create(destPath)
	if err != nil {
		t.fail(1, fmt.Sprintf("cannot create destination: %v", err))
		return
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(dest)

	var copied int64
	buf := make([]byte, copyChunk)
	for {
		select {
		case <-t.stopCh:
			t.exit = 1
			return
		default:
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dest.Write(buf[:n]); werr != nil {
				t.fail(1, fmt.Sprintf("write failed: %v", werr))
				return
			}

			copied += int64(n)
			t.report(copied, info.Size())
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			t.fail(1, fmt.Sprintf("read failed: %v", rerr))
			return
		}
	}

	t.exit = 0
}

func (t *fileTransfer) report(copied, total int64) {
	r := record.New()
	r.SetInt("bytes_copied", int(copied))
	r.SetInt("bytes_total", int(total))
	r.Set("message", "")

	select {
	case t.progress <- r:
	case <-t.stopCh:
	default:
	}
}

func (t *fileTransfer) fail(exit int, msg string) {
	t.exit = exit

	r := record.New()
	r.Set("message", msg)
	select {
	case t.progress <- r:
	default:
	}
}
