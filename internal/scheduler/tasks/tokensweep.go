package tasks

import (
	"context"

	"github.com/tgmanager/tgmanager/internal/linktoken"
	"github.com/tgmanager/tgmanager/internal/scheduler"
)

const TokenSweepTaskID = "link-token-sweep"

// RegisterTokenSweepTask registers the link-token eviction sweep. Tokens
// left unanswered would otherwise live until restart.
func RegisterTokenSweepTask(sched *scheduler.Scheduler, store *linktoken.Store, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          TokenSweepTaskID,
		Name:        "Link Token Sweep",
		Description: "Removes link-selection tokens older than the configured TTL",
		Cron:        cron,
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			store.Sweep()
			return nil
		},
	})
}
