package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage scheduled tasks",
}

func init() {
	RootCmd.AddCommand(taskCmd)
}

// parseDay parses YYYY-MM-DD in the location of now. An empty string
// means the day of now.
func parseDay(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return day, nil
}

// parseSchedule accepts an RFC 3339 instant, or a clock time (HH:MM) on
// date, which defaults to the day of now.
func parseSchedule(at, date string, now time.Time) (time.Time, error) {
	at = strings.TrimSpace(at)
	if at == "" {
		return time.Time{}, fmt.Errorf("--at is required")
	}
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		if date != "" {
			return time.Time{}, fmt.Errorf("--date cannot be combined with a full timestamp")
		}
		return t, nil
	}

	clock, err := time.Parse("15:04", at)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want HH:MM or RFC 3339", at)
	}
	day, err := parseDay(date, now)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// writeTaskTable renders tasks as a plain table in local time.
func writeTaskTable(w io.Writer, views []model.TaskView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tSTATUS\tNAME\tDESCRIPTION")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			v.ID, v.ScheduledAt.Local().Format("2006-01-02 15:04"), v.Status, v.Name, v.DescriptionText())
	}
	tw.Flush()
}
