package server

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gridmdp/models"
	"gridmdp/playback"
	"gridmdp/reinforcement"
	"gridmdp/server/fastview"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServer(t *testing.T) {
	Convey("Given a server over the solved tiny grid", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		grid := models.MustGridWorld(models.TinyLayout, models.LearningRewards)
		tensor, _ := reinforcement.BuildTransitions(grid, reinforcement.DefaultSlip)
		solved, err := reinforcement.SolveValueIteration(grid, tensor, reinforcement.ValueIterationConfig{
			Discount: 0.9,
			Sweeps:   200,
		})
		So(err, ShouldBeNil)

		robot, err := playback.NewRobot(grid, solved.Policy, rand.New(rand.NewSource(1)))
		So(err, ShouldBeNil)

		chartDir := t.TempDir()
		So(os.WriteFile(filepath.Join(chartDir, "rewards.html"), []byte("<html>chart</html>"), 0644), ShouldBeNil)

		initial := robot.Snapshot()
		snapshots := robot.Run(ctx.Done(), 10*time.Millisecond, 0)
		srv, err := NewServer(ctx, ":0", grid, solved.Q, initial, snapshots, chartDir)
		So(err, ShouldBeNil)

		Convey("The index page renders every view", func() {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			body := rec.Body.String()
			So(body, ShouldContainSubstring, `id="valuesgrid"`)
			So(body, ShouldContainSubstring, `id="valuefunction"`)
			So(body, ShouldContainSubstring, `id="status-step"`)
			So(body, ShouldContainSubstring, "/ws")
		})

		Convey("Unknown routes and methods are rejected", func() {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)

			rec = httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Charts are served from the chart directory", func() {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts/rewards.html", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "chart")
		})

		Convey("A websocket client receives the robot's progress", func() {
			httpServer := httptest.NewServer(srv.Handler())
			defer httpServer.Close()

			url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
			ws, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer ws.Close()

			So(ws.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			updates := []fastview.EleUpdate{}
			So(ws.ReadJSON(&updates), ShouldBeNil)
			So(len(updates), ShouldBeGreaterThan, 0)

			_ = ws.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		})
	})
}
