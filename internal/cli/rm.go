package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task",
		Long:  "Delete a task. Deleting a task that does not exist is not an error.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	taskCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	id, err := parseTaskID(args[0])
	if err != nil {
		exitErr("rm", err)
	}

	s, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Delete(cmd.Context(), model.Task{ID: id}); err != nil {
		exitErr("rm", err)
	}

	if textOutput() {
		fmt.Printf("Deleted task %d\n", id)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%d}`+"\n", id)
}
