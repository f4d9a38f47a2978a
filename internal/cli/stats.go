package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsReport struct {
	Tasks      *store.TaskStats `json:"tasks"`
	Catalog    store.MoodCounts `json:"catalog"`
	TasksDB    string           `json:"tasks_db"`
	TasksBytes int64            `json:"tasks_db_bytes"`
	MoodsDB    string           `json:"moods_db"`
	MoodsBytes int64            `json:"moods_db_bytes"`
}

func runStats(cmd *cobra.Command, args []string) {
	ts, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer ts.Close()

	ms, err := openMoodStore(cmd, false)
	if err != nil {
		exitErr("open store", err)
	}
	defer ms.Close()

	taskStats, err := ts.Stats(cmd.Context(), time.Now())
	if err != nil {
		exitErr("stats", err)
	}
	counts, err := ms.Counts(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	report := statsReport{
		Tasks:      taskStats,
		Catalog:    counts,
		TasksDB:    cfg.Data.TasksDB,
		TasksBytes: store.FileSize(cfg.Data.TasksDB),
		MoodsDB:    cfg.Data.MoodsDB,
		MoodsBytes: store.FileSize(cfg.Data.MoodsDB),
	}
	if textOutput() {
		fmt.Printf("tasks: %d (pending %d, missed %d, done %d)\n",
			taskStats.Total, taskStats.Pending, taskStats.Missed, taskStats.Done)
		fmt.Printf("catalog: %d songs, %d activities\n", counts.Songs, counts.Activities)
		fmt.Printf("%s: %d bytes\n%s: %d bytes\n", report.TasksDB, report.TasksBytes, report.MoodsDB, report.MoodsBytes)
		return
	}
	printJSON(report)
}
