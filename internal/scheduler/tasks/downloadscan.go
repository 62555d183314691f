package tasks

import (
	"context"

	"github.com/tgmanager/tgmanager/internal/downloads"
	"github.com/tgmanager/tgmanager/internal/scheduler"
	"github.com/tgmanager/tgmanager/internal/websocket"
)

const DownloadScanTaskID = "download-scan"

// RegisterDownloadScanTask registers a periodic rescan of the destination
// tree. The backends write files on their own, so a scheduled push keeps
// connected dashboards in sync without polling the listing endpoint.
func RegisterDownloadScanTask(sched *scheduler.Scheduler, svc *downloads.Service, hub *websocket.Hub) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DownloadScanTaskID,
		Name:        "Download Folder Scan",
		Description: "Rescans the destination tree and pushes the listing to connected clients",
		Cron:        "*/5 * * * *",
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			entries, err := svc.List()
			if err != nil {
				return err
			}
			if hub != nil {
				_ = hub.Broadcast("downloads:listing", entries)
			}
			return nil
		},
	})
}
