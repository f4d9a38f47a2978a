package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in scheduled order",
		Run:   runList,
	}

	cmd.Flags().String("date", "", "Only tasks on this day, YYYY-MM-DD or \"today\"")
	cmd.Flags().String("status", "", "Filter by status: pending, missed or done")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0: no limit)")

	taskCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	date, _ := cmd.Flags().GetString("date")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	switch model.TaskStatus(status) {
	case "", model.StatusPending, model.StatusMissed, model.StatusDone:
	default:
		exitErr("list", fmt.Errorf("unknown status %q", status))
	}

	s, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	now := time.Now()
	var tasks []model.Task
	if date != "" {
		if date == "today" {
			date = ""
		}
		day, err := parseDay(date, now)
		if err != nil {
			exitErr("list", err)
		}
		tasks, err = s.ListBetween(cmd.Context(), day, day.AddDate(0, 0, 1))
		if err != nil {
			exitErr("list", err)
		}
	} else {
		tasks, err = s.List(cmd.Context())
		if err != nil {
			exitErr("list", err)
		}
	}

	views := filterViews(model.Views(now, tasks), model.TaskStatus(status), limit)
	if textOutput() {
		writeTaskTable(os.Stdout, views)
		return
	}
	printJSON(views)
}

func filterViews(views []model.TaskView, status model.TaskStatus, limit int) []model.TaskView {
	out := make([]model.TaskView, 0, len(views))
	for _, v := range views {
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
