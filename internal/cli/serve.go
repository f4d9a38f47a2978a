package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/smartlife/internal/recipe"
	"github.com/rcliao/smartlife/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task and mood APIs over HTTP",
		Long:  "Serve the task and mood APIs, stream the live task list on /ws/tasks and log tasks as they fall due.",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr from config)")
	cmd.Flags().Duration("remind-every", time.Minute, "How often to check for due tasks")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	every, _ := cmd.Flags().GetDuration("remind-every")
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, err := openTaskStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer tasks.Close()

	moods, err := openMoodStore(cmd, true)
	if err != nil {
		exitErr("open store", err)
	}
	defer moods.Close()

	recipes, err := recipe.Load(cfg.Data.Recipes)
	if err != nil {
		exitErr("recipes", err)
	}

	srv := server.New(addr, tasks, moods, recipes, logger)
	reminder := server.NewReminder(tasks, every, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return reminder.Run(gctx) })

	if err := g.Wait(); err != nil {
		exitErr("serve", err)
	}
}
