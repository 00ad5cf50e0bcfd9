package cell_views

import (
	"bytes"
	"html/template"
	"math/rand"
	"testing"

	"gridmdp/models"
	"gridmdp/playback"
	"gridmdp/reinforcement"
	"gridmdp/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func tinyBoard() (*models.GridWorld, *models.QTable, func(playback.Snapshot) Board) {
	grid := models.MustGridWorld(models.TinyLayout, models.LearningRewards)
	tensor, _ := reinforcement.BuildTransitions(grid, reinforcement.DefaultSlip)
	result, _ := reinforcement.SolveValueIteration(grid, tensor, reinforcement.ValueIterationConfig{
		Discount: 0.9,
		Sweeps:   200,
	})
	return grid, result.Q, NewConverter(grid, result.Q)
}

var funcs = template.FuncMap{
	"add":  func(i, j int) int { return i + j },
	"sub":  func(i, j int) int { return i - j },
	"mult": func(i, j int) int { return i * j },
	"div":  func(i, j int) int { return i / j },
}

func render(vc fastview.ViewComponent, board Board) (string, error) {
	t := template.New("test").Funcs(funcs)
	name, err := vc.Parse(t)
	if err != nil {
		return "", err
	}
	if _, err = t.Parse(`{{ template "` + name + `" . }}`); err != nil {
		return "", err
	}
	buf := &bytes.Buffer{}
	err = t.Execute(buf, board)
	return buf.String(), err
}

func TestConverter(t *testing.T) {
	Convey("Given a board over the solved tiny grid", t, func() {
		grid, q, convert := tinyBoard()
		robot, err := playback.NewRobot(grid, q.Policy(), rand.New(rand.NewSource(1)))
		So(err, ShouldBeNil)
		snap := robot.Snapshot()
		board := convert(snap)

		So(len(board.Cells), ShouldEqual, 2)
		So(len(board.Cells[0]), ShouldEqual, 2)

		Convey("Cells carry position, fill and policy arrows", func() {
			topLeft := board.Cells[0][0]
			So(topLeft.X, ShouldEqual, 0)
			So(topLeft.Y, ShouldEqual, 0)
			So(topLeft.PolicyArrowRotation, ShouldEqual, models.EAST.Degrees())
			So(board.Cells[1][1].PolicyArrowRotation, ShouldEqual, models.NORTH.Degrees())
			So(board.Cells[1][0].Fill, ShouldEqual, "lightgreen")
			So(board.Cells[0][1].Fill, ShouldEqual, "lightyellow")
			So(board.Cells[1][0].PolicyArrowScale, ShouldEqual, 0)
			So(board.Cells[0][1].Max, ShouldEqual, q.Max(grid.Index(0, 1)))
		})

		Convey("Heights are normalized over open cells", func() {
			for _, row := range board.Cells {
				for _, cell := range row {
					So(cell.Height, ShouldBeBetweenOrEqual, 0.0, 1.0)
				}
			}
			So(board.Cells[0][1].Height, ShouldEqual, 1.0)
		})

		Convey("Only the robot's cell is marked, and boards do not share cells", func() {
			marked := 0
			for _, row := range board.Cells {
				for _, cell := range row {
					if cell.HasRobot {
						marked++
						So(cell.Y, ShouldEqual, snap.Row)
						So(cell.X, ShouldEqual, snap.Col)
					}
				}
			}
			So(marked, ShouldEqual, 1)

			other := snap
			other.Row, other.Col = 0, 1
			next := convert(other)
			So(next.Cells[0][1].HasRobot, ShouldBeTrue)
			So(board.Cells[0][1].HasRobot, ShouldBeFalse)
		})
	})
}

func TestViews(t *testing.T) {
	Convey("Given views fed by a board channel", t, func() {
		_, _, convert := tinyBoard()
		board := convert(playback.Snapshot{Step: 3, Row: 1, Col: 1, Cumulative: 2.5, Resets: 2})
		done := make(chan struct{})
		defer close(done)

		Convey("The values grid updates text, arrows and the robot marker", func() {
			boards := make(chan Board, 1)
			vg := NewValuesGrid(done, boards)
			boards <- board
			updates := <-vg.Updates()
			So(len(updates), ShouldEqual, 4*3)

			visible := map[string]string{}
			for _, update := range updates {
				for _, op := range update.Ops {
					if op.Key == "visibility" {
						visible[update.EleId] = op.Value
					}
				}
			}
			So(visible["1-1-robot"], ShouldEqual, "visible")
			So(visible["0-0-robot"], ShouldEqual, "hidden")

			html, err := render(vg, board)
			So(err, ShouldBeNil)
			So(html, ShouldContainSubstring, `id="1-0-value-text"`)
			So(html, ShouldContainSubstring, `id="0-1-policy-arrow"`)
			So(html, ShouldContainSubstring, "lightgreen")
		})

		Convey("The status view reports the robot's progress", func() {
			boards := make(chan Board, 1)
			st := NewStatus(done, boards)
			boards <- board
			updates := <-st.Updates()
			So(updates, ShouldResemble, []fastview.EleUpdate{
				{EleId: "status-step", Ops: []fastview.Op{{Key: "textContent", Value: "3"}}},
				{EleId: "status-reward", Ops: []fastview.Op{{Key: "textContent", Value: "2.50"}}},
				{EleId: "status-resets", Ops: []fastview.Op{{Key: "textContent", Value: "2"}}},
			})

			html, err := render(st, board)
			So(err, ShouldBeNil)
			So(html, ShouldContainSubstring, `<span id="status-reward">2.50</span>`)
		})

		Convey("The value function emits a polygon per cell quad and a centering transform", func() {
			boards := make(chan Board, 1)
			vf := NewValueFunction(done, boards)
			boards <- board
			updates := <-vf.Updates()
			So(len(updates), ShouldEqual, 2)
			So(updates[0].EleId, ShouldEqual, "0-0-value-polygon")
			So(updates[1].EleId, ShouldEqual, "valuefunction-group")

			html, err := render(vf, board)
			So(err, ShouldBeNil)
			So(html, ShouldContainSubstring, `id="0-0-value-polygon"`)
		})
	})

	Convey("Fills shade from blue to red", t, func() {
		So(getRGBFill(0), ShouldEqual, "rgb(0%,0%,100%)")
		So(getRGBFill(1), ShouldEqual, "rgb(100%,0%,0%)")
		So(getRGBFill(2), ShouldEqual, "rgb(100%,0%,0%)")
	})
}
