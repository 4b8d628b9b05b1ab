package action

import "os/exec"

// Runner spawns the OS processes behind intent side effects. Launches are
// fire and forget: Start returns as soon as the process is running and
// never waits for it to exit, so an opened terminal or media player
// outlives the command cycle that spawned it.
type Runner interface {
	// LookPath reports where name resolves on PATH, or an error if it
	// does not.
	LookPath(name string) (string, error)

	// Start launches the program detached from the assistant's stdio.
	Start(name string, args ...string) error
}

// ExecRunner is the real [Runner] backed by os/exec.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// LookPath implements [Runner].
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Start implements [Runner].
func (ExecRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child in the background so it never turns into a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}
