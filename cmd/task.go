package cmd

import (
	"github.com/flanksource/clicky/task"

	"github.com/flanksource/deps-fetch/pkg/reporter"
)

// taskReporterSource adapts a *task.Task (or nil, for commands that run
// outside a task) to reporter.Reporter; every long-running command gets
// its own *task.Task for progress display.
type taskReporterSource struct {
	t *task.Task
}

func (s *taskReporterSource) reporter() reporter.Reporter {
	if s == nil {
		return reporter.NewTaskReporter(nil)
	}
	return reporter.NewTaskReporter(s.t)
}
