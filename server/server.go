package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"

	"gridmdp/models"
	"gridmdp/playback"
	"gridmdp/server/cell_views"
	"gridmdp/server/fastview"
	"gridmdp/server/root_view"

	"github.com/gorilla/mux"
)

const shutdownGracePeriod = 5 * time.Second

// Server serves a single page showing a learned table and a robot following its policy,
// updated over a websocket. The page's update channel is shared, so only one client
// at a time receives the robot's progress.
type Server struct {
	addr     string
	initial  cell_views.Board
	rootView *root_view.RootView
	router   *mux.Router
}

// NewServer builds the views over the grid and table, fed by the robot's snapshots.
// initial is the robot's position before its first step. If chartDir is non-empty
// its files are served under /charts/.
func NewServer(
	ctx context.Context,
	addr string,
	grid *models.GridWorld,
	q *models.QTable,
	initial playback.Snapshot,
	snapshots <-chan playback.Snapshot,
	chartDir string,
) (*Server, error) {
	convert := cell_views.NewConverter(grid, q)
	rootView, err := root_view.NewRootView(ctx, snapshots, convert)
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	server := &Server{
		addr:     addr,
		initial:  convert(initial),
		rootView: rootView,
		router:   mux.NewRouter(),
	}

	server.router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	server.router.HandleFunc("/ws", server.serveWebsocket)
	if chartDir != "" {
		server.router.PathPrefix("/charts/").Handler(
			http.StripPrefix("/charts/", http.FileServer(http.Dir(chartDir))))
	}
	return server, nil
}

// Handler returns the server's router.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens until the context is cancelled or the listener fails.
func (server *Server) Serve(ctx context.Context) (err error) {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Println("serving on", server.addr)
	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		log.Println(err)
		return
	}
	defer cli.Close()

	if err = cli.Sync(); err != nil {
		log.Println("sync:", err)
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, server.initial); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}
