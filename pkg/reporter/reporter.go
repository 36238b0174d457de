// Package reporter defines the capability interfaces the core engine uses
// for progress and confirmation, plus a default adapter onto
// github.com/flanksource/clicky/task. The core never imports this adapter
// directly; it depends only on the Reporter/Confirmer interfaces, so it
// stays testable headlessly.
package reporter

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/flanksource/clicky/task"

	"github.com/flanksource/deps-fetch/pkg/utils"
)

// Reporter is the progress capability the core depends on.
type Reporter interface {
	Message(msg string)
	Bytes(done, total int64)
	Tick()
	DownloadStarted(url, dest string)
	Extracted(archivePath, extractDir string, fileCount int)
}

// Confirmer is the single user-confirmation capability the core depends on.
type Confirmer interface {
	Confirm(prompt string) bool
}

// TaskReporter adapts a *task.Task to the Reporter interface.
type TaskReporter struct {
	t *task.Task
}

// NewTaskReporter wraps t. A nil t is valid and makes every call a no-op.
func NewTaskReporter(t *task.Task) *TaskReporter {
	return &TaskReporter{t: t}
}

func (r *TaskReporter) Message(msg string) {
	if r.t == nil {
		return
	}
	r.t.Infof("%s", msg)
}

func (r *TaskReporter) Bytes(done, total int64) {
	if r.t == nil {
		return
	}
	if total > 0 {
		r.t.SetProgress(int(done), int(total))
	}
}

func (r *TaskReporter) Tick() {
	if r.t == nil {
		return
	}
	r.t.V(4).Infof("tick")
}

func (r *TaskReporter) DownloadStarted(url, dest string) {
	utils.LogDownloadStart(r.t, url, dest)
}

func (r *TaskReporter) Extracted(archivePath, extractDir string, fileCount int) {
	utils.LogExtraction(r.t, archivePath, extractDir, fileCount)
}

// StdinConfirmer is the default Confirmer, prompting on stdin/stdout.
type StdinConfirmer struct{}

func (StdinConfirmer) Confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

// AlwaysConfirm approves every prompt, for --force / non-interactive flows.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(string) bool { return true }
