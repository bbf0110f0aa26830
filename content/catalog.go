// Package content holds the static movie and head-to-head tables the games
// draw from.
package content

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wfunc/partyserver/models"
	"github.com/wfunc/partyserver/random"
)

//go:embed catalog.yaml
var embedded []byte

type Catalog struct {
	Movies     []models.Movie          `yaml:"movies"`
	HeadToHead []models.HeadToHeadCard `yaml:"head_to_head"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embedded)
		if err != nil {
			panic("content: embedded catalog is invalid: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Parse decodes a YAML catalog and rejects duplicate or empty ids.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(c.Movies))
	for _, m := range c.Movies {
		if m.ID == "" || m.Title == "" {
			return nil, fmt.Errorf("movie entry missing id or title: %+v", m)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate movie id %q", m.ID)
		}
		seen[m.ID] = true
	}
	if len(c.HeadToHead) == 0 {
		return nil, fmt.Errorf("catalog has no head-to-head cards")
	}
	return &c, nil
}

// Filter returns the movies in any of the given categories.
func (c *Catalog) Filter(categories []string) []models.Movie {
	allowed := make(map[string]bool, len(categories))
	for _, cat := range categories {
		allowed[cat] = true
	}
	var out []models.Movie
	for _, m := range c.Movies {
		if allowed[m.Category] {
			out = append(out, m)
		}
	}
	return out
}

// RandomMovie picks one movie from categories other than excludeID.
func (c *Catalog) RandomMovie(rnd random.Random, categories []string, excludeID string) (models.Movie, error) {
	var pool []models.Movie
	for _, m := range c.Filter(categories) {
		if m.ID != excludeID {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return models.Movie{}, fmt.Errorf("%w: no movies for categories %v", models.ErrNotFound, categories)
	}
	return pool[rnd.Intn(len(pool))], nil
}

// DrawMovies picks n distinct movies.
func (c *Catalog) DrawMovies(rnd random.Random, n int, categories []string) ([]models.Movie, error) {
	pool := c.Filter(categories)
	if len(pool) < n {
		return nil, fmt.Errorf("%w: need %d movies, catalog has %d for %v",
			models.ErrPreconditionFailed, n, len(pool), categories)
	}
	for i := 0; i < n; i++ {
		j := i + rnd.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n], nil
}

func (c *Catalog) RandomHeadToHead(rnd random.Random) models.HeadToHeadCard {
	return c.HeadToHead[rnd.Intn(len(c.HeadToHead))]
}
