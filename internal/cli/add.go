package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
	"github.com/rcliao/smartlife/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Schedule a task",
		Long:  "Schedule a task. The description can be a flag or piped via stdin.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAdd,
	}

	cmd.Flags().String("desc", "", "Description")
	cmd.Flags().String("at", "", "When: HH:MM or RFC 3339 (required)")
	cmd.Flags().String("date", "", "Day for an HH:MM time, YYYY-MM-DD (default: today)")

	cmd.MarkFlagRequired("at")

	taskCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	desc, _ := cmd.Flags().GetString("desc")
	at, _ := cmd.Flags().GetString("at")
	date, _ := cmd.Flags().GetString("date")

	when, err := parseSchedule(at, date, time.Now())
	if err != nil {
		exitErr("add", err)
	}

	// Description: flag first, then check stdin
	if desc == "" {
		stat, _ := os.Stdin.Stat()
		if stat != nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			desc = strings.TrimSpace(string(b))
		}
	}
	var description *string
	if desc != "" {
		description = &desc
	}

	s, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	t, err := s.Add(cmd.Context(), store.AddTaskParams{
		Name:        strings.Join(args, " "),
		Description: description,
		ScheduledAt: when,
	})
	if err != nil {
		exitErr("add", err)
	}

	view := model.TaskView{Task: *t, Status: model.Status(time.Now(), *t)}
	if textOutput() {
		fmt.Printf("Added task %d %q at %s (%s)\n", t.ID, t.Name, t.ScheduledAt.Local().Format("2006-01-02 15:04"), view.Status)
		return
	}
	printJSON(view)
}
