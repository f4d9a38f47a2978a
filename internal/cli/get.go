package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	taskCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	id, err := parseTaskID(args[0])
	if err != nil {
		exitErr("get", err)
	}

	s, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	t, err := s.Get(cmd.Context(), id)
	if err != nil {
		exitErr("get", err)
	}

	view := model.TaskView{Task: *t, Status: model.Status(time.Now(), *t)}
	if textOutput() {
		writeTaskTable(os.Stdout, []model.TaskView{view})
		return
	}
	printJSON(view)
}
