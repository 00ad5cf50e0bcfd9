package cell_views

import (
	"fmt"
	"html/template"

	"gridmdp/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// Status shows the robot's step count, cumulative reward and goal resets.
type Status struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewStatus(
	done <-chan struct{},
	boards <-chan Board,
) (st *Status) {
	st = &Status{id: "status"}
	st.updates = channerics.Convert(done, boards, st.onUpdate)
	return
}

func (st *Status) Updates() <-chan []fastview.EleUpdate {
	return st.updates
}

func (st *Status) onUpdate(board Board) []fastview.EleUpdate {
	text := func(id, val string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: st.id + "-" + id,
			Ops:   []fastview.Op{{Key: "textContent", Value: val}},
		}
	}
	return []fastview.EleUpdate{
		text("step", fmt.Sprintf("%d", board.Step)),
		text("reward", fmt.Sprintf("%.2f", board.Cumulative)),
		text("resets", fmt.Sprintf("%d", board.Resets)),
	}
}

func (st *Status) Parse(
	t *template.Template,
) (name string, err error) {
	name = st.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="font-family: monospace; padding: 10px;">
			Step: <span id="` + st.id + `-step">{{ .Step }}</span>
			Reward: <span id="` + st.id + `-reward">{{ printf "%.2f" .Cumulative }}</span>
			Goals: <span id="` + st.id + `-resets">{{ .Resets }}</span>
		</div>
		{{ end }}`)
	return
}
