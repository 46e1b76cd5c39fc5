package session

import (
	"fmt"
	"os"
	"os/exec"
)

// Process is the registry's handle on a running assistant process.
// The production implementation wraps exec.Cmd; tests substitute fakes.
type Process interface {
	// Pid returns the OS-assigned process identifier.
	Pid() int

	// Terminate requests graceful termination.
	Terminate() error

	// Wait blocks until the process has exited.
	Wait() error
}

// execProcess wraps an exec.Cmd as a Process.
type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	return p.cmd.Process.Signal(os.Interrupt)
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

// Launcher starts one assistant process bound to a room and token.
type Launcher func(roomURL, token string) (Process, error)

// ExecLauncher returns a Launcher that runs the bot command in its own
// OS process; stdout/stderr are inherited so the bot's logs land in the
// server's log stream.
func ExecLauncher(command string) Launcher {
	return func(roomURL, token string) (Process, error) {
		cmd := exec.Command(command, "-u", roomURL, "-t", token)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", command, err)
		}
		return &execProcess{cmd: cmd}, nil
	}
}
