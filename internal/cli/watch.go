package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the task list as it changes",
		Long:  "Print the task list, then a fresh list after every change, until interrupted. JSON output is one list per line.",
		Run:   runWatch,
	}

	taskCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	feed, err := s.Watch(ctx)
	if err != nil {
		exitErr("watch", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for tasks := range feed {
		now := time.Now()
		views := model.Views(now, tasks)
		if textOutput() {
			fmt.Printf("-- %s --\n", now.Format("15:04:05"))
			writeTaskTable(os.Stdout, views)
			continue
		}
		if err := enc.Encode(views); err != nil {
			exitErr("write", err)
		}
	}
}
