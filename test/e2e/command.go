package e2e

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/vladimirvivien/gexe/exec"
)

func runCommand(command string, env []string) error {
	stdout := bytes.NewBufferString("")
	stderr := bytes.NewBufferString("")

	proc := exec.NewProc(command)
	proc.Command().Stdout = stdout
	proc.Command().Stderr = stderr

	if len(env) > 0 {
		proc.Command().Env = env
	}

	proc.Start().Wait()

	err := proc.Err()
	if err != nil {
		sOutput, _ := io.ReadAll(stdout)
		sErr, _ := io.ReadAll(stderr)

		return fmt.Errorf("failed to run command (%w): stdout:%s stderr:%s", err, string(sOutput), string(sErr))
	}

	return nil
}

// BuildBinary compiles the orchestrator into output.
func BuildBinary(output string) error {
	return runCommand(fmt.Sprintf("go build -o %s github.com/purpleteam-labs/campaign-orchestrator/cmd/campaign-orchestrator", output), nil)
}

// syncBuffer collects the output of a running process.
type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.buf.String()
}
