package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

func init() {
	doneCmd := &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { setCompleted(cmd, args[0], true) },
	}

	undoCmd := &cobra.Command{
		Use:   "undo [id]",
		Short: "Mark a task not completed",
		Args:  cobra.ExactArgs(1),
		Run:   func(cmd *cobra.Command, args []string) { setCompleted(cmd, args[0], false) },
	}

	taskCmd.AddCommand(doneCmd, undoCmd)
}

func setCompleted(cmd *cobra.Command, arg string, completed bool) {
	id, err := parseTaskID(arg)
	if err != nil {
		exitErr("update", err)
	}

	s, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	t, err := s.Modify(cmd.Context(), id, func(t *model.Task) { t.Completed = completed })
	if err != nil {
		exitErr("update", err)
	}

	view := model.TaskView{Task: *t, Status: model.Status(time.Now(), *t)}
	if textOutput() {
		fmt.Printf("Task %d %q is %s\n", t.ID, t.Name, view.Status)
		return
	}
	printJSON(view)
}
