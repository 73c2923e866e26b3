package overlay

// PlaceAll projects every entity onto the map. The output has one entry per
// input, in input order; nothing is dropped or deduplicated.
func PlaceAll(entities []Entity, bounds BoundingBox, imageWidthPx, imageHeightPx int) []PlacedEntity {
	placed := make([]PlacedEntity, len(entities))
	for i, e := range entities {
		placed[i] = PlacedEntity{
			Entity: e,
			Geo:    PixelToGeo(e.Position, bounds, imageWidthPx, imageHeightPx),
		}
	}
	return placed
}

// Placer places entity batches for one configured overlay
type Placer struct {
	projector *Projector
}

// NewPlacer creates a Placer backed by the given projector
func NewPlacer(projector *Projector) *Placer {
	return &Placer{projector: projector}
}

// Projector returns the projector used for placement
func (p *Placer) Projector() *Projector {
	return p.projector
}

// Place projects a batch. In strict mode the first out-of-range entity fails
// the whole batch and no placements are returned.
func (p *Placer) Place(entities []Entity) ([]PlacedEntity, error) {
	pr := p.projector
	if !pr.Strict {
		return PlaceAll(entities, pr.Bounds, pr.Width, pr.Height), nil
	}

	placed := make([]PlacedEntity, len(entities))
	for i, e := range entities {
		g, err := pr.PixelToGeo(e.Position)
		if err != nil {
			return nil, &EntityError{ID: e.ID, Index: i, Err: err}
		}
		placed[i] = PlacedEntity{Entity: e, Geo: g}
	}
	return placed, nil
}

// EntityError ties a placement failure to the entity that caused it
type EntityError struct {
	ID    string
	Index int
	Err   error
}

func (e *EntityError) Error() string {
	return "entity " + e.ID + ": " + e.Err.Error()
}

func (e *EntityError) Unwrap() error {
	return e.Err
}
