package model

// Point is one sample of a signature stroke, in pad coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SignaturePath is a captured customer signature as ordered strokes.
// It lives only until the completion request is sent.
type SignaturePath struct {
	Strokes [][]Point `json:"strokes"`
}

// Empty reports whether no point has been drawn.
func (s *SignaturePath) Empty() bool {
	if s == nil {
		return true
	}
	for _, stroke := range s.Strokes {
		if len(stroke) > 0 {
			return false
		}
	}
	return true
}

// Bounds returns the max X and Y over all points.
func (s *SignaturePath) Bounds() (maxX, maxY float64) {
	if s == nil {
		return 0, 0
	}
	for _, stroke := range s.Strokes {
		for _, p := range stroke {
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	return maxX, maxY
}
