// Package async runs fire-and-forget background tasks with panic recovery
// and a per-task timeout.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// SafeGo executes fn in a goroutine. The task gets its own context derived
// from parent with the given timeout, recovers from panics, and logs
// failures instead of crashing the process. Use it instead of a bare
// `go func()` for work the request does not wait on.
func SafeGo(parent context.Context, timeout time.Duration, task string, log *logrus.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"task":  task,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("Background task panicked")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", task).Warn("Background task failed")
		}
	}()
}
