package web

import (
	"time"

	"github.com/JonMunkholm/assessx/internal/catalog"
	"github.com/JonMunkholm/assessx/internal/wizard"
)

type checkNameRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type checkNameResponse struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// mappingRequest maps one role. Only tagNames takes more than one header.
type mappingRequest struct {
	Role    string   `json:"role" validate:"required"`
	Headers []string `json:"headers" validate:"required,min=1,dive,required"`
}

type mappingResponse struct {
	Role   string          `json:"role"`
	Error  string          `json:"error,omitempty"`
	Wizard wizard.Snapshot `json:"wizard"`
}

// nameRequest may carry an empty name; clearing a name is a valid edit.
type nameRequest struct {
	Name string `json:"name" validate:"max=255"`
}

type templateSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sections  int       `json:"sections"`
	Questions int       `json:"questions"`
	CreatedAt time.Time `json:"createdAt"`
}

func summarize(records []catalog.Record) []templateSummary {
	out := make([]templateSummary, len(records))
	for i, rec := range records {
		out[i] = templateSummary{
			ID:        rec.ID,
			Name:      rec.Name,
			Sections:  len(rec.Template.Sections),
			Questions: rec.Template.QuestionCount(),
			CreatedAt: rec.CreatedAt,
		}
	}
	return out
}
