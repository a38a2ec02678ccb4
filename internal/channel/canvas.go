package channel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

const (
	defaultCanvasWidth  = 800
	defaultCanvasHeight = 600
	maxCanvasSide       = 2048
)

// CanvasArtifact is the compact form of a canvas sent with a mark request.
type CanvasArtifact struct {
	Image   string // PNG data URI, empty when there are no strokes
	Latex   string // graph expressions in creation order
	Summary string // JSON list of the flattened canvas items
}

type canvasItem struct {
	Kind      string    `json:"kind"`
	Points    int       `json:"points,omitempty"`
	Color     string    `json:"color,omitempty"`
	Latex     string    `json:"latex,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	stroke *models.Stroke
}

// RenderCanvas flattens strokes and graph expressions into one list ordered
// by creation time and renders the strokes to a PNG.
func RenderCanvas(c *models.CanvasData) (CanvasArtifact, error) {
	if c.IsEmpty() {
		return CanvasArtifact{}, nil
	}

	items := make([]canvasItem, 0, len(c.Strokes)+len(c.Expressions))
	for i := range c.Strokes {
		s := &c.Strokes[i]
		items = append(items, canvasItem{Kind: "stroke", Points: len(s.Points), Color: s.Color, CreatedAt: s.CreatedAt, stroke: s})
	}
	for _, e := range c.Expressions {
		if strings.TrimSpace(e.Latex) == "" {
			continue
		}
		items = append(items, canvasItem{Kind: "expression", Latex: e.Latex, CreatedAt: e.CreatedAt})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	var artifact CanvasArtifact
	var latex []string
	var strokes []*models.Stroke
	for _, item := range items {
		if item.stroke != nil {
			strokes = append(strokes, item.stroke)
			continue
		}
		latex = append(latex, item.Latex)
	}
	artifact.Latex = strings.Join(latex, "\n")

	summary, err := json.Marshal(items)
	if err != nil {
		return CanvasArtifact{}, err
	}
	artifact.Summary = string(summary)

	if len(strokes) > 0 {
		img, err := renderStrokes(strokes, c.Width, c.Height)
		if err != nil {
			return CanvasArtifact{}, err
		}
		artifact.Image = img
	}
	return artifact, nil
}

func renderStrokes(strokes []*models.Stroke, width, height int) (string, error) {
	width = canvasSide(width, defaultCanvasWidth)
	height = canvasSide(height, defaultCanvasHeight)

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	for _, s := range strokes {
		ink := parseColor(s.Color)
		radius := int(math.Max(0, math.Round(s.Width/2)))
		if len(s.Points) == 1 {
			dot(img, s.Points[0], radius, ink)
		}
		for i := 1; i < len(s.Points); i++ {
			line(img, s.Points[i-1], s.Points[i], radius, ink)
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func canvasSide(v, def int) int {
	if v <= 0 {
		return def
	}
	if v > maxCanvasSide {
		return maxCanvasSide
	}
	return v
}

// line draws a segment by stepping along its longest axis.
func line(img *image.NRGBA, from, to models.Point, radius int, ink color.NRGBA) {
	dx, dy := to.X-from.X, to.Y-from.Y
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		dot(img, from, radius, ink)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		dot(img, models.Point{X: from.X + dx*t, Y: from.Y + dy*t}, radius, ink)
	}
}

func dot(img *image.NRGBA, p models.Point, radius int, ink color.NRGBA) {
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if (image.Point{X: x, Y: y}).In(img.Rect) {
				img.SetNRGBA(x, y, ink)
			}
		}
	}
}

// parseColor reads #rgb or #rrggbb, falling back to black.
func parseColor(s string) color.NRGBA {
	black := color.NRGBA{A: 0xff}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return black
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return black
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
