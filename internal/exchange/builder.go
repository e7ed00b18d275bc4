package exchange

import (
	"strings"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

// Literal header labels of the repeated option columns.
const (
	ValueHeader = "Value"
	ScoreHeader = "Score"
)

// OptionSlot is one Value column and the Score column paired with it.
// Score is -1 when the Value column has no Score column after it.
type OptionSlot struct {
	Value int
	Score int
}

// ScanOptionSlots finds option columns by literal header text. Every
// "Value" column opens a slot; the first "Score" column after it, and
// before the next "Value", is its score column.
//
// This is deliberately independent of the role mapping: option columns
// cannot be remapped by the user.
func ScanOptionSlots(header []string) []OptionSlot {
	var slots []OptionSlot
	for i, h := range header {
		switch CleanCell(h) {
		case ValueHeader:
			slots = append(slots, OptionSlot{Value: i, Score: -1})
		case ScoreHeader:
			if n := len(slots); n > 0 && slots[n-1].Score < 0 {
				slots[n-1].Score = i
			}
		}
	}
	return slots
}

// TagExtractor derives template tags from a row group. Tag import is
// switched off: a Builder with a nil TagExtractor produces empty tags.
type TagExtractor func(header []string, rows [][]string, m ColumnMapping) []string

// Builder turns row groups into templates.
type Builder struct {
	Header      []string
	Mapping     ColumnMapping
	ExtractTags TagExtractor

	slots []OptionSlot
	cols  builderColumns
}

type builderColumns struct {
	section, description, question int
	required, qtype, severity, kb  int
}

// NewBuilder resolves the mapping against header once for all groups.
func NewBuilder(header []string, m ColumnMapping) *Builder {
	b := &Builder{Header: header, Mapping: m, slots: ScanOptionSlots(header)}
	b.cols = builderColumns{
		section:     b.index(RoleSectionName),
		description: b.index(RoleSectionDescription),
		question:    b.index(RoleQuestionName),
		required:    b.index(RoleRequired),
		qtype:       b.index(RoleType),
		severity:    b.index(RoleSeverity),
		kb:          b.index(RoleKnowledgeBase),
	}
	return b
}

func (b *Builder) index(r Role) int {
	i, ok := b.Mapping.Index(r, b.Header)
	if !ok {
		return -1
	}
	return i
}

// cell returns the cleaned value at col, or "" when col is unmapped or the
// row is too short. Use it for enum and flag columns.
func cell(row []string, col int) string {
	v, _ := Cell(row, col)
	return CleanCell(v)
}

// textCell returns the value at col exactly as written, or "" when it is
// blank. Names, descriptions and option values keep their text so that an
// exported template reads back unchanged.
func textCell(row []string, col int) string {
	v, _ := Cell(row, col)
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}

// Build converts one row group into a template named name. The result is
// not validated; run ValidateTemplate on it.
func (b *Builder) Build(g RowGroup, name string) assessment.Template {
	t := assessment.Template{
		Name:     name,
		Tags:     []string{},
		KBs:      []string{},
		Sections: []assessment.Section{},
	}

	rows := make([][]string, 0, len(g.Rows))
	for _, row := range g.Rows {
		if !isEmptyRow(row) {
			rows = append(rows, row)
		}
	}

	if b.ExtractTags != nil {
		if tags := b.ExtractTags(b.Header, rows, b.Mapping); tags != nil {
			t.Tags = tags
		}
	}

	var (
		current     = -1
		currentName string
		kbSeen      = make(map[string]bool)
	)

	for n, row := range rows {
		sectionName := textCell(row, b.cols.section)
		if sectionName != "" && sectionName != currentName {
			t.Sections = append(t.Sections, assessment.Section{
				Name:      sectionName,
				Questions: []assessment.Question{},
			})
			current = len(t.Sections) - 1
			currentName = sectionName
		}
		if current < 0 {
			// Rows ahead of the first section name land in an unnamed
			// section, which ValidateTemplate rejects.
			t.Sections = append(t.Sections, assessment.Section{Questions: []assessment.Question{}})
			current = 0
		}

		sec := &t.Sections[current]
		if sec.Description == "" {
			sec.Description = textCell(row, b.cols.description)
		}
		sec.Questions = append(sec.Questions, b.question(row, n+1))

		for _, kb := range strings.Split(cell(row, b.cols.kb), ",") {
			kb = strings.TrimSpace(kb)
			if kb == "" || kbSeen[kb] {
				continue
			}
			kbSeen[kb] = true
			t.KBs = append(t.KBs, kb)
		}
	}

	return t
}

func (b *Builder) question(row []string, number int) assessment.Question {
	q := assessment.Question{
		Name:     textCell(row, b.cols.question),
		Type:     assessment.DefaultType,
		Severity: assessment.DefaultSeverity,
		Number:   number,
	}

	if b.cols.required >= 0 {
		q.Required = strings.EqualFold(cell(row, b.cols.required), "yes")
	}
	// Unknown enum values are kept verbatim so the document pass can
	// report them.
	if v := cell(row, b.cols.qtype); v != "" {
		q.Type = assessment.QuestionType(strings.ToLower(v))
	}
	if v := cell(row, b.cols.severity); v != "" {
		q.Severity = assessment.Severity(strings.ToLower(v))
	}

	for _, slot := range b.slots {
		v, _ := Cell(row, slot.Value)
		// A blank value still counts when its score cell is filled, which
		// is how an export writes an option with an empty value.
		if strings.TrimSpace(v) == "" && cell(row, slot.Score) == "" {
			continue
		}
		// Scores are not read back from the file.
		q.Options = append(q.Options, assessment.NewOption(v, 0))
	}
	if len(q.Options) == 0 {
		q.Options = assessment.DefaultOptions(q.Type)
	}
	return q
}
