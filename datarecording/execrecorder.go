package datarecording

import (
	"os"
	"strings"
	"time"
)

const execInfoTable = "exec_info"

type execInfo struct {
	Property string
	Value    string
}

// execRecorder records when and how the program ran.
type execRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

func newExecRecorder(recorder DataRecorder) *execRecorder {
	recorder.CreateTable(execInfoTable, execInfo{})

	return &execRecorder{recorder: recorder}
}

// Start logs the start of the execution.
func (e *execRecorder) Start() {
	e.entries = append(e.entries,
		execInfo{"Start Time", time.Now().Format(time.RFC3339Nano)},
		execInfo{"Command", strings.Join(os.Args, " ")},
	)

	if cwd, err := os.Getwd(); err == nil {
		e.entries = append(e.entries, execInfo{"Working Directory", cwd})
	}
}

// End writes the execution information along with the end time.
func (e *execRecorder) End() {
	e.entries = append(e.entries,
		execInfo{"End Time", time.Now().Format(time.RFC3339Nano)})

	for _, entry := range e.entries {
		e.recorder.InsertData(execInfoTable, entry)
	}

	e.entries = nil
}
