package models

import "time"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one handwriting stroke on the answer canvas.
type Stroke struct {
	Points    []Point   `json:"points"`
	Color     string    `json:"color,omitempty"`
	Width     float64   `json:"width,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphExpression is one expression entered in the graphing tool.
type GraphExpression struct {
	ID        string    `json:"id"`
	Latex     string    `json:"latex"`
	CreatedAt time.Time `json:"created_at"`
}

// CanvasData is the non-text work submitted alongside an answer.
type CanvasData struct {
	Strokes     []Stroke          `json:"strokes,omitempty"`
	Expressions []GraphExpression `json:"expressions,omitempty"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
}

func (c *CanvasData) IsEmpty() bool {
	return c == nil || (len(c.Strokes) == 0 && len(c.Expressions) == 0)
}
