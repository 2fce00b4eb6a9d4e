package placement

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidelinehq/sideline/go/internal/models"
	"github.com/sidelinehq/sideline/go/internal/session"
)

// strokeBuffer accumulates freehand points between pointer-down and
// pointer-up. Points never reach the reducer individually.
type strokeBuffer struct {
	id     uuid.UUID
	points []models.StrokePoint
}

// BeginStroke starts a new freehand drawing at the given point.
func (m *Manager) BeginStroke(x, y float64) {
	if m.stroke != nil {
		m.CancelStroke()
	}
	m.stroke = &strokeBuffer{
		id:     uuid.New(),
		points: []models.StrokePoint{{X: x, Y: y}},
	}
}

// StrokeTo appends a point to the buffered stroke.
func (m *Manager) StrokeTo(x, y float64) {
	if m.stroke == nil {
		return
	}
	m.stroke.points = append(m.stroke.points, models.StrokePoint{X: x, Y: y})
}

// StrokePoints returns the buffered points for live rendering.
func (m *Manager) StrokePoints() []models.StrokePoint {
	if m.stroke == nil {
		return nil
	}
	return m.stroke.points
}

// EndStroke commits the whole buffered stroke as one action. Strokes
// with fewer than two points are discarded as accidental taps.
func (m *Manager) EndStroke() error {
	if m.stroke == nil {
		return nil
	}
	buf := m.stroke
	m.stroke = nil

	if len(buf.points) < 2 {
		log.Debug().Str("stroke_id", buf.id.String()).Msg("stroke discarded: too few points")
		return nil
	}
	return m.dispatch(session.AddStroke{
		Meta: m.meta(),
		Stroke: models.Stroke{
			ID:        buf.id,
			Points:    buf.points,
			CreatedMs: m.clock.Now().UnixMilli(),
		},
	})
}

// CancelStroke drops the buffer with zero mutations.
func (m *Manager) CancelStroke() {
	m.stroke = nil
}
