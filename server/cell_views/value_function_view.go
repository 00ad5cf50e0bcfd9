package cell_views

import (
	"fmt"
	"html/template"
	"math"

	"gridmdp/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// cellDim is the cell height/width in pixels.
const cellDim = 80

// ang is the angle of the x and y axes in the projection (30°).
var sinAng, cosAng = math.Sin(math.Pi / 6), math.Cos(math.Pi / 6)

// ValueFunction provides a view of the max action values as a 2d isometric
// projection of the 3d surface (col, row, value).
type ValueFunction struct {
	id      string
	updates <-chan []fastview.EleUpdate
	proj    projection
}

// projection maps grid coordinates and normalized heights to svg pixels.
type projection struct {
	xyscale float64 // pixels per x or y unit
	zscale  float64 // pixels per unit of height
}

func newProjection() projection {
	return projection{
		xyscale: cellDim,
		zscale:  cellDim * 1.5,
	}
}

func (p projection) project(x, y, z float64) (float64, float64) {
	sx := (x - y) * cosAng * p.xyscale
	sy := (x+y)*sinAng*p.xyscale - z*p.zscale
	return sx, sy
}

func NewValueFunction(
	done <-chan struct{},
	boards <-chan Board,
) (vf *ValueFunction) {
	vf = &ValueFunction{
		id:   "valuefunction",
		proj: newProjection(),
	}
	vf.updates = channerics.Convert(done, boards, vf.onUpdate)
	return
}

func (vf *ValueFunction) Updates() <-chan []fastview.EleUpdate {
	return vf.updates
}

// funcPolygon is the projection of four adjacent cells: A is bottom left, B top left,
// C top right and D bottom right.
type funcPolygon struct {
	Id     string
	ax, ay float64
	bx, by float64
	cx, cy float64
	dx, dy float64
}

func (p projection) polygon(id string, a, b, c, d Cell) (fp *funcPolygon) {
	fp = &funcPolygon{Id: id}
	fp.ax, fp.ay = p.project(float64(a.X), float64(a.Y), a.Height)
	fp.bx, fp.by = p.project(float64(b.X), float64(b.Y), b.Height)
	fp.cx, fp.cy = p.project(float64(c.X), float64(c.Y), c.Height)
	fp.dx, fp.dy = p.project(float64(d.X), float64(d.Y), d.Height)
	return
}

// String returns the svg-polygon 'points' attribute, truncated to ints.
func (fp *funcPolygon) String() string {
	return fmt.Sprintf("%d,%d %d,%d %d,%d %d,%d",
		int(fp.ax), int(fp.ay),
		int(fp.bx), int(fp.by),
		int(fp.cx), int(fp.cy),
		int(fp.dx), int(fp.dy),
	)
}

func (fp *funcPolygon) bounds() (minX, minY, maxX, maxY float64) {
	minX = math.Min(math.Min(fp.ax, fp.bx), math.Min(fp.cx, fp.dx))
	minY = math.Min(math.Min(fp.ay, fp.by), math.Min(fp.cy, fp.dy))
	maxX = math.Max(math.Max(fp.ax, fp.bx), math.Max(fp.cx, fp.dx))
	maxY = math.Max(math.Max(fp.ay, fp.by), math.Max(fp.cy, fp.dy))
	return
}

func polygonId(cell Cell) string {
	return fmt.Sprintf("%d-%d-value-polygon", cell.X, cell.Y)
}

// getRGBFill shades from blue (low) to red (high) by a height in [0,1].
func getRGBFill(height float64) string {
	redPct := int(100.0 * math.Max(0, math.Min(1, height)))
	return fmt.Sprintf("rgb(%d%%,0%%,%d%%)", redPct, 100-redPct)
}

// onUpdate returns the polygon points and fills of the surface, and a transform
// centering it in the view.
func (vf *ValueFunction) onUpdate(board Board) (ops []fastview.EleUpdate) {
	cells := board.Cells
	if len(cells) < 2 || len(cells[0]) < 2 {
		return nil
	}

	xmin, ymin := math.MaxFloat64, math.MaxFloat64
	xmax, ymax := -math.MaxFloat64, -math.MaxFloat64
	for ri, row := range cells[:len(cells)-1] {
		for ci, cell := range row[:len(row)-1] {
			cellA := cells[ri+1][ci]
			cellB := cells[ri][ci]
			cellC := cells[ri][ci+1]
			cellD := cells[ri+1][ci+1]
			polygon := vf.proj.polygon(polygonId(cell), cellA, cellB, cellC, cellD)

			minX, minY, maxX, maxY := polygon.bounds()
			xmin, ymin = math.Min(xmin, minX), math.Min(ymin, minY)
			xmax, ymax = math.Max(xmax, maxX), math.Max(ymax, maxY)

			avgHeight := (cellA.Height + cellB.Height + cellC.Height + cellD.Height) / 4
			ops = append(ops, fastview.EleUpdate{
				EleId: polygon.Id,
				Ops: []fastview.Op{
					{Key: "points", Value: polygon.String()},
					{Key: "fill", Value: getRGBFill(avgHeight)},
				},
			})
		}
	}

	// Scale down only if needed to fit the plot in the canvas.
	width := float64(len(cells[0])) * cellDim * 2
	height := float64(len(cells)) * cellDim * 2
	scaler := math.Min(
		math.Min(
			math.Abs(width/(xmax-xmin)),
			math.Abs(height/(ymax-ymin)),
		),
		1.0,
	)

	ops = append(ops, fastview.EleUpdate{
		EleId: vf.id + "-group",
		Ops: []fastview.Op{
			{
				Key:   "transform",
				Value: fmt.Sprintf("scale(%f) translate(%d %d)", scaler, int(-xmin), int(-ymin)),
			},
		},
	})
	return
}

// Parse returns an svg of polygons plotting the value surface. The initial points
// are placeholders until the first update arrives.
func (vf *ValueFunction) Parse(
	t *template.Template,
) (name string, err error) {
	name = vf.id
	// The order of polygon creation forms the surface by obscuring prior polygons.
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div style="padding:40px;">
			{{ $y_cells := len .Cells }}
			{{ $x_cells := len (index .Cells 0) }}
			{{ $width := mult ` + fmt.Sprintf("%d", cellDim) + ` $x_cells }}
			{{ $height := mult ` + fmt.Sprintf("%d", cellDim) + ` $y_cells }}
			<svg id="` + vf.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ mult $width 2 }}px"
				height="{{ mult $height 2 }}px"
				style="shape-rendering: crispEdges; stroke: lightgrey; stroke-opacity: 1.0; stroke-width: 3;">
				<g id="` + vf.id + `-group" transform="translate(0 0)">
				{{ range $ri, $row := .Cells }}
					{{ if lt $ri (sub $y_cells 1) }}
						{{ range $cell := $row }}
							{{ if lt $cell.X (sub $x_cells 1) }}
								<polygon id="{{$cell.X}}-{{$cell.Y}}-value-polygon"
									fill="black" fill-opacity="1.0" points="0,0 0,0 0,0 0,0" />
							{{ end }}
						{{ end }}
					{{ end }}
				{{ end }}
				</g>
			</svg>
		</div>
		{{ end }}`)
	return
}
