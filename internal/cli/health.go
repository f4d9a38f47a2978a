package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/health"
	"github.com/rcliao/smartlife/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Daily health indexes for the profile",
		Long: "Compute BMI, sleep, water, step and calorie goals from the configured profile. " +
			"The latest logged weight replaces the profile weight. Flags override both.",
		Run: runHealth,
	}

	cmd.Flags().String("gender", "", "MALE or FEMALE")
	cmd.Flags().Float64("height", 0, "Height in cm")
	cmd.Flags().Float64("weight", 0, "Weight in kg")
	cmd.Flags().Int("age", 0, "Age in years")

	weightCmd := &cobra.Command{
		Use:   "weight",
		Short: "Log body weight and chart it",
	}

	addCmd := &cobra.Command{
		Use:   "add [kg]",
		Short: "Log today's weight",
		Args:  cobra.ExactArgs(1),
		Run:   runWeightAdd,
	}

	chartCmd := &cobra.Command{
		Use:   "chart",
		Short: "Show the weight chart",
		Run:   runWeightChart,
	}
	chartCmd.Flags().String("range", health.RangeWeek, "Chart range: week or month")

	weightCmd.AddCommand(addCmd, chartCmd)
	cmd.AddCommand(weightCmd)
	RootCmd.AddCommand(cmd)
}

type healthReport struct {
	Profile health.Profile `json:"profile"`
	health.Summary
	WeightEntries    int  `json:"weight_entries"`
	NeedsWeightEntry bool `json:"needs_weight_entry"`
}

type weightReport struct {
	Range   string              `json:"range"`
	Points  []int               `json:"points"`
	Entries []store.WeightEntry `json:"entries,omitempty"`
}

func openWeightLog() (*store.WeightLog, error) {
	return store.OpenWeightLog(cfg.Data.HealthDB, health.MaxWeightEntries, logger)
}

func runHealth(cmd *cobra.Command, args []string) {
	wl, err := openWeightLog()
	if err != nil {
		exitErr("open weight log", err)
	}
	defer wl.Close()
	entries, err := wl.Entries(cmd.Context())
	if err != nil {
		exitErr("weight log", err)
	}

	p := health.Profile{
		Name:     cfg.Profile.Name,
		Gender:   health.ParseGender(cfg.Profile.Gender),
		HeightCm: cfg.Profile.HeightCm,
		WeightKg: latestWeight(entries, cfg.Profile.WeightKg),
		Age:      cfg.Profile.Age,
	}
	if cmd.Flags().Changed("gender") {
		g, _ := cmd.Flags().GetString("gender")
		p.Gender = health.ParseGender(g)
	}
	if cmd.Flags().Changed("height") {
		p.HeightCm, _ = cmd.Flags().GetFloat64("height")
	}
	if cmd.Flags().Changed("weight") {
		p.WeightKg, _ = cmd.Flags().GetFloat64("weight")
	}
	if cmd.Flags().Changed("age") {
		p.Age, _ = cmd.Flags().GetInt("age")
	}
	if p.HeightCm <= 0 || p.WeightKg <= 0 || p.Age <= 0 {
		exitErr("health", fmt.Errorf("height, weight and age must be positive"))
	}

	report := healthReport{
		Profile:          p,
		Summary:          health.Summarize(p),
		WeightEntries:    len(entries),
		NeedsWeightEntry: needsWeightEntry(entries, time.Now()),
	}
	if textOutput() {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "BMI\t%.1f\n", report.BMI)
		fmt.Fprintf(tw, "Sleep\t%s hours\n", report.SleepHours)
		fmt.Fprintf(tw, "Water\t%d ml\n", report.WaterMl)
		fmt.Fprintf(tw, "Steps\t%d\n", report.Steps)
		fmt.Fprintf(tw, "Calories\t%d kcal\n", report.CaloriesKcal)
		tw.Flush()
		if report.NeedsWeightEntry {
			fmt.Println(weightPrompt(len(entries)))
		}
		return
	}
	printJSON(report)
}

func runWeightAdd(cmd *cobra.Command, args []string) {
	kg, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		exitErr("weight", fmt.Errorf("weight %q: want whole kilograms", args[0]))
	}

	wl, err := openWeightLog()
	if err != nil {
		exitErr("open weight log", err)
	}
	defer wl.Close()

	entry, err := wl.Add(cmd.Context(), kg, time.Now())
	if err != nil {
		exitErr("weight", err)
	}
	if textOutput() {
		fmt.Printf("Logged %d kg\n", entry.WeightKg)
		return
	}
	printJSON(entry)
}

func runWeightChart(cmd *cobra.Command, args []string) {
	rangeName, _ := cmd.Flags().GetString("range")
	if rangeName != health.RangeWeek && rangeName != health.RangeMonth {
		exitErr("chart", fmt.Errorf("range %q: want week or month", rangeName))
	}

	wl, err := openWeightLog()
	if err != nil {
		exitErr("open weight log", err)
	}
	defer wl.Close()
	entries, err := wl.Entries(cmd.Context())
	if err != nil {
		exitErr("weight log", err)
	}

	report := weightReport{Range: rangeName, Points: health.WeightChart(weights(entries), rangeName), Entries: entries}
	if textOutput() {
		writeWeightChart(os.Stdout, report.Points)
		return
	}
	printJSON(report)
}

func weights(entries []store.WeightEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.WeightKg
	}
	return out
}

// latestWeight is the most recent logged weight, or fallback with no log.
func latestWeight(entries []store.WeightEntry, fallback float64) float64 {
	if len(entries) == 0 {
		return fallback
	}
	return float64(entries[len(entries)-1].WeightKg)
}

func needsWeightEntry(entries []store.WeightEntry, now time.Time) bool {
	var last time.Time
	if len(entries) > 0 {
		last = entries[len(entries)-1].LoggedAt.In(now.Location())
	}
	return health.NeedsWeightEntry(len(entries), last, now)
}

// weightPrompt counts the first five entries, then asks daily.
func weightPrompt(count int) string {
	if count < 5 {
		return fmt.Sprintf("Enter your weight (%d/5): smartlife health weight add KG", count+1)
	}
	return "What's your weight today? smartlife health weight add KG"
}

// writeWeightChart draws one bar per point, scaled to the heaviest.
func writeWeightChart(w io.Writer, points []int) {
	if len(points) == 0 {
		fmt.Fprintln(w, "No weight entries.")
		return
	}
	top := 0
	for _, p := range points {
		top = max(top, p)
	}
	for _, p := range points {
		bar := 1
		if top > 0 {
			bar = max(1, p*30/top)
		}
		fmt.Fprintf(w, "%4d kg %s\n", p, strings.Repeat("#", bar))
	}
}
