package cities

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/city-weather-gateway/internal/models"
)

// Directory is the read-only city lookup built from the city list asset.
// It is never mutated after Parse returns, so concurrent reads need no locking.
type Directory struct {
	byID map[int]models.CityRecord
}

// Parse decodes a JSON array of CityRecord and indexes it by id.
// Later duplicates of an id replace earlier ones.
func Parse(data []byte) (*Directory, error) {
	var records []models.CityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse city list: %w", err)
	}
	d := &Directory{byID: make(map[int]models.CityRecord, len(records))}
	for _, r := range records {
		d.byID[r.ID] = r
	}
	return d, nil
}

// Lookup returns the city with the given id.
func (d *Directory) Lookup(id int) (models.CityRecord, bool) {
	if d == nil {
		return models.CityRecord{}, false
	}
	c, ok := d.byID[id]
	return c, ok
}

// Len returns the number of distinct city ids.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}

// IDs returns every known city id in unspecified order.
func (d *Directory) IDs() []int {
	if d == nil {
		return nil
	}
	out := make([]int, 0, len(d.byID))
	for id := range d.byID {
		out = append(out, id)
	}
	return out
}
