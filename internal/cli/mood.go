package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/smartlife/internal/model"
)

func init() {
	moodCmd := &cobra.Command{
		Use:   "mood",
		Short: "Songs and activities for a mood",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List mood labels",
		Run:   runMoodList,
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the mood catalog into the database",
		Long:  "Load the mood catalog into the database. Rows that already exist are skipped, so running it again is safe.",
		Run:   runMoodSeed,
	}

	songsCmd := &cobra.Command{
		Use:   "songs [mood]",
		Short: "Songs for a mood",
		Args:  cobra.ExactArgs(1),
		Run:   runMoodSongs,
	}

	activitiesCmd := &cobra.Command{
		Use:   "activities [mood]",
		Short: "Activities for a mood",
		Args:  cobra.ExactArgs(1),
		Run:   runMoodActivities,
	}

	moodCmd.AddCommand(listCmd, seedCmd, songsCmd, activitiesCmd)
	RootCmd.AddCommand(moodCmd)
}

func runMoodList(cmd *cobra.Command, args []string) {
	moods := model.Moods()
	if textOutput() {
		for _, m := range moods {
			fmt.Println(m)
		}
		return
	}
	printJSON(moods)
}

func runMoodSeed(cmd *cobra.Command, args []string) {
	s, err := openMoodStore(cmd, false)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := s.EnsureSeeded(cmd.Context())
	if err != nil {
		exitErr("seed", err)
	}

	if textOutput() {
		fmt.Printf("Inserted %d songs and %d activities\n", res.Songs, res.Activities)
		return
	}
	printJSON(res)
}

func runMoodSongs(cmd *cobra.Command, args []string) {
	s, err := openMoodStore(cmd, true)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	songs, err := s.SongsForMood(cmd.Context(), args[0])
	if err != nil {
		exitErr("songs", err)
	}
	warnUnknownMood(args[0])

	if textOutput() {
		for _, song := range songs {
			fmt.Printf("%s\t%s\n", song.Name, song.Link)
		}
		return
	}
	printJSON(songs)
}

func runMoodActivities(cmd *cobra.Command, args []string) {
	s, err := openMoodStore(cmd, true)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	activities, err := s.ActivitiesForMood(cmd.Context(), args[0])
	if err != nil {
		exitErr("activities", err)
	}
	warnUnknownMood(args[0])

	if textOutput() {
		for _, a := range activities {
			fmt.Println(a.Text)
		}
		return
	}
	printJSON(activities)
}

// warnUnknownMood logs a hint; lookups are exact and case-sensitive.
func warnUnknownMood(mood string) {
	if !model.Mood(mood).Valid() {
		logger.Warn().Str("mood", mood).Interface("known", model.Moods()).Msg("unknown mood label")
	}
}
