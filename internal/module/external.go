package module

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"portage/internal/record"
)

// External wraps an executable discovered in the module directory. The
// program reports its metadata when run with -i, and performs a
// transfer when given a job record on stdin, writing progress records
// to stdout and signalling the result through its exit code.
type External struct {
	path      string
	name      string
	protocols []string
	info      *record.Record
}

func NewExternal(path string) (*External, error) {
	out, err := exec.Command(path, "-i").Output()
	if err != nil {
		return nil, fmt.Errorf("module info probe failed: %w", err)
	}

	info, err := record.Parse(bufio.NewReader(bytes.NewReader(out)))
	if err != nil {
		return nil, fmt.Errorf("bad module info record: %w", err)
	}

	protos := strings.Split(info.Get("protocols"), ",")
	for i := range protos {
		protos[i] = strings.TrimSpace(protos[i])
	}
	if len(protos) == 0 || protos[0] == "" {
		return nil, fmt.Errorf("module %s reports no protocols", path)
	}

	name := info.Get("name")
	if name == "" {
		name = path
	}

	return &External{path: path, name: name, protocols: protos, info: info}, nil
}

func (e *External) Name() string {
	return e.name
}

func (e *External) Protocols() []string {
	return e.protocols
}

func (e *External) Info() *record.Record {
	return e.info.Copy()
}

func (e *External) Transfer(spec *record.Record) (Transfer, error) {
	cmd := exec.Command(e.path)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start module %s: %w", e.name, err)
	}

	if _, err := stdin.Write(spec.Bytes()); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("failed to hand job to module %s: %w", e.name, err)
	}
	_ = stdin.Close()

	t := &execTransfer{
		cmd:      cmd,
		progress: make(chan *record.Record, 8),
	}

	go func() {
		defer close(t.progress)

		br := bufio.NewReader(stdout)
		for {
			rec, err := record.Parse(br)
			if err != nil {
				return
			}
			t.progress <- rec
		}
	}()

	return t, nil
}

type execTransfer struct {
	cmd      *exec.Cmd
	progress chan *record.Record

	waitOnce sync.Once
	exit     int
}

func (t *execTransfer) Progress() <-chan *record.Record {
	return t.progress
}

func (t *execTransfer) Wait() int {
	t.waitOnce.Do(func() {
		_ = t.cmd.Wait()
		t.exit = t.cmd.ProcessState.ExitCode()
		if t.exit < 0 {
			// Killed by signal (e.g. Stop).
			t.exit = 1
		}
	})

	return t.exit
}

func (t *execTransfer) Stop() {
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
}
