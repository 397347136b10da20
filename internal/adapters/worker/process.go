package worker

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/bft-labs/platewatch/internal/ports"
)

// Process is a worker subprocess. It embeds the Client speaking to it.
type Process struct {
	*Client

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger ports.Logger

	wg      sync.WaitGroup
	exited  chan struct{}
	waitErr error
}

// Start spawns command with args and connects a client to its stdin and stdout.
// The worker's stderr is forwarded to the logger line by line. The process
// lives until Close so that frames queued at shutdown can still be analyzed.
func Start(command string, args []string, logger ports.Logger) (*Process, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker %s: %w", command, err)
	}

	logger.Info("worker process spawned",
		ports.String("command", command),
		ports.Int("pid", cmd.Process.Pid),
	)

	p := &Process{
		Client: NewClient(stdin, bufio.NewReader(stdout)),
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
		exited: make(chan struct{}),
	}

	// A hung worker cannot be trusted to answer a later request either.
	p.Client.interrupt = func() {
		logger.Warn("worker call abandoned, killing worker", ports.Int("pid", cmd.Process.Pid))
		_ = cmd.Process.Kill()
	}

	p.wg.Add(1)
	go p.logStderr(stderr)

	// cmd.Wait must run after stderr has been fully read.
	go func() {
		p.wg.Wait()
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

func (p *Process) logStderr(r io.Reader) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug("worker stderr", ports.String("line", scanner.Text()))
	}
}

// Close closes the worker's stdin and waits up to five seconds for it to
// exit before killing it.
func (p *Process) Close() error {
	err := p.stdin.Close()

	select {
	case <-p.exited:
	case <-time.After(5 * time.Second):
		p.logger.Warn("worker did not exit, killing it", ports.Int("pid", p.cmd.Process.Pid))
		err = multierr.Append(err, p.cmd.Process.Kill())
		<-p.exited
	}
	return multierr.Append(err, ignoreExit(p.waitErr))
}

// ignoreExit drops the error reported for a worker that stopped because its
// stdin was closed or it was killed during Close.
func ignoreExit(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}
