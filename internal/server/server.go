// Package server exposes the task feed, the mood catalog and the recipes over
// HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rcliao/smartlife/internal/model"
	"github.com/rcliao/smartlife/internal/recipe"
	"github.com/rcliao/smartlife/internal/store"
)

const (
	// WriteWait is the time allowed to write a message to the peer.
	WriteWait = 10 * time.Second
	// PongWait is the time allowed to read the next pong from the peer.
	PongWait = 60 * time.Second
	// PingPeriod must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10

	shutdownTimeout = 5 * time.Second
)

// Server serves the task, mood and recipe APIs.
type Server struct {
	addr     string
	tasks    store.Tasks
	moods    store.Catalogs
	recipes  *recipe.Book
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
	conns   sync.WaitGroup
}

// New creates a server bound to addr.
func New(addr string, tasks store.Tasks, moods store.Catalogs, recipes *recipe.Book, logger zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		tasks:   tasks,
		moods:   moods,
		recipes: recipes,
		logger:  logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkLocalOrigin,
		},
		now:     time.Now,
		baseCtx: context.Background(),
	}
}

// TaskFeedMessage is one frame of the /ws/tasks stream.
type TaskFeedMessage struct {
	Type  string           `json:"type"`
	At    time.Time        `json:"at"`
	Tasks []model.TaskView `json:"tasks"`
}

type taskRequest struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Completed   *bool     `json:"completed"`
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("POST /api/tasks", s.handleAddTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("GET /api/moods", s.handleMoods)
	mux.HandleFunc("GET /api/moods/{mood}/songs", s.handleSongs)
	mux.HandleFunc("GET /api/moods/{mood}/activities", s.handleActivities)
	mux.HandleFunc("GET /api/recipes", s.handleRecipes)
	mux.HandleFunc("GET /api/recipes/categories", s.handleRecipeCategories)
	mux.HandleFunc("GET /api/recipes/{name}", s.handleRecipe)
	mux.HandleFunc("GET /ws/tasks", s.handleTaskFeed)
	return mux
}

// Run serves until ctx is done, then shuts down and waits for open feeds.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	feedCtx, cancelFeeds := context.WithCancel(ctx)
	defer cancelFeeds()
	s.mu.Lock()
	s.baseCtx = feedCtx
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		cancelFeeds()
		s.conns.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	// Hijacked feed connections are not tracked by Shutdown.
	cancelFeeds()
	s.conns.Wait()
	s.logger.Info().Msg("stopped")
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().UTC(),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var (
		tasks []model.Task
		err   error
	)
	if day := r.URL.Query().Get("date"); day != "" {
		from, perr := time.ParseInLocation("2006-01-02", day, time.Local)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		tasks, err = s.tasks.ListBetween(r.Context(), from, from.AddDate(0, 0, 1))
	} else {
		tasks, err = s.tasks.List(r.Context())
	}
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Views(s.now(), tasks))
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, err := s.tasks.Add(r.Context(), store.AddTaskParams{
		Name:        req.Name,
		Description: req.Description,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.TaskView{Task: *t, Status: model.Status(s.now(), *t)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.TaskView{Task: *t, Status: model.Status(s.now(), *t)})
}

// handleUpdateTask applies the fields present in the body to the stored task.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	t, err := s.tasks.Modify(r.Context(), id, func(t *model.Task) {
		if req.Name != "" {
			t.Name = req.Name
		}
		if req.Description != nil {
			t.Description = req.Description
		}
		if !req.ScheduledAt.IsZero() {
			t.ScheduledAt = req.ScheduledAt
		}
		if req.Completed != nil {
			t.Completed = *req.Completed
		}
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.TaskView{Task: *t, Status: model.Status(s.now(), *t)})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), model.Task{ID: id}); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Moods())
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.moods.SongsForMood(r.Context(), r.PathValue("mood"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.moods.ActivitiesForMood(r.Context(), r.PathValue("mood"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

// handleRecipes lists recipes, narrowed by ?category= or ?popular=true.
func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("category"):
		writeJSON(w, http.StatusOK, s.recipes.ByCategory(q.Get("category")))
	case q.Get("popular") == "true":
		writeJSON(w, http.StatusOK, s.recipes.Popular())
	default:
		writeJSON(w, http.StatusOK, s.recipes.All())
	}
}

func (s *Server) handleRecipeCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, recipe.Categories())
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recipes.Find(r.PathValue("name"))
	if errors.Is(err, recipe.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleTaskFeed streams every snapshot of the task list until the peer
// goes away or the server stops.
func (s *Server) handleTaskFeed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	base := s.baseCtx
	s.conns.Add(1)
	s.mu.Unlock()
	defer s.conns.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(base)
	defer cancel()

	feed, err := s.tasks.Watch(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("subscribe task feed")
		writeClose(conn, websocket.CloseInternalServerErr, "feed unavailable")
		return
	}

	remote := conn.RemoteAddr().String()
	s.logger.Debug().Str("remote", remote).Msg("feed client connected")
	defer s.logger.Debug().Str("remote", remote).Msg("feed client disconnected")

	go s.readPump(conn, cancel)
	s.writePump(ctx, conn, feed)
}

// readPump discards client frames and keeps the read deadline fresh on pong.
func (s *Server) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, feed <-chan []model.Task) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case tasks, ok := <-feed:
			if !ok {
				// The feed also closes when ctx ends; only a closed store is going away.
				if ctx.Err() != nil {
					writeClose(conn, websocket.CloseNormalClosure, "")
				} else {
					writeClose(conn, websocket.CloseGoingAway, "feed closed")
				}
				return
			}
			now := s.now()
			msg := TaskFeedMessage{Type: "tasks", At: now.UTC(), Tasks: model.Views(now, tasks)}
			conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Msg("write feed frame")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			writeClose(conn, websocket.CloseNormalClosure, "")
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(WriteWait))
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "store closed")
	default:
		s.logger.Error().Err(err).Msg("store request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// checkLocalOrigin accepts same-host and loopback browser origins and any
// non-browser client.
func checkLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if host == r.Host {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host == "localhost" || host == "127.0.0.1" || host == "[::1]" || host == "::1"
}
