package area

import (
	"fmt"
	"time"

	"github.com/herdsearch/herd-search/internal/domain/geo"
)

// MinVertices is the smallest polygon that encloses anything. Areas below
// this are rejected at creation and never persisted.
const MinVertices = 3

// Area is a developer-authored named polygon on the festival map. Names are
// unique by convention only; nothing enforces it.
type Area struct {
	ID        string
	Name      string
	Polygon   geo.Polygon
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Area) ValidateBasic() error {
	if a.ID == "" {
		return fmt.Errorf("area id is required")
	}
	if a.Name == "" {
		return fmt.Errorf("area name is required")
	}
	if len(a.Polygon) < MinVertices {
		return fmt.Errorf("area polygon needs at least %d points, got %d", MinVertices, len(a.Polygon))
	}

	return nil
}
