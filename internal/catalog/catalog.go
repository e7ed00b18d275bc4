// Package catalog stores created assessment templates and answers the
// partial-name searches the import wizard uses to detect name collisions.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

var (
	// ErrNameTaken is returned by Create when a template with the same name
	// (ignoring case) already exists.
	ErrNameTaken = errors.New("template name already exists")

	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("template not found")
)

// Record is a stored template.
type Record struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Tags      []string            `json:"tags"`
	KBs       []string            `json:"kbs"`
	Template  assessment.Template `json:"template"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Catalog is the external template catalog.
type Catalog interface {
	// SearchByName returns records whose name partially matches partial.
	// An empty partial returns every record.
	SearchByName(ctx context.Context, partial string) ([]Record, error)
	// Create stores t and returns the record with its generated id.
	Create(ctx context.Context, t assessment.Template) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context) ([]Record, error)
}

// NormalizeName is the form names are compared in.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NameTaken reports whether any of records has exactly name, ignoring case
// and surrounding whitespace. Partial matches returned by a search do not
// count.
func NameTaken(records []Record, name string) bool {
	want := NormalizeName(name)
	if want == "" {
		return false
	}
	for _, r := range records {
		if NormalizeName(r.Name) == want {
			return true
		}
	}
	return false
}

// Exists searches c for name and reports whether it is taken.
func Exists(ctx context.Context, c Catalog, name string) (bool, error) {
	records, err := c.SearchByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return false, err
	}
	return NameTaken(records, name), nil
}

func newRecord(id string, t assessment.Template, createdAt time.Time) Record {
	t.ID = id
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.KBs == nil {
		t.KBs = []string{}
	}
	return Record{
		ID:        id,
		Name:      t.Name,
		Tags:      t.Tags,
		KBs:       t.KBs,
		Template:  t,
		CreatedAt: createdAt,
	}
}
