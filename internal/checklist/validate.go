package checklist

import (
	"fmt"
	"strings"
)

// Incomplete points at the first section that blocks completion.
type Incomplete struct {
	SectionID SectionID `json:"sectionId"`
	// Position is the 1-based place of the section in the checklist order.
	Position int    `json:"position"`
	Message  string `json:"message"`
}

var initialOrder = []SectionID{
	SectionGeneral,
	SectionEntry,
	SectionBedrooms,
	SectionLiving,
	SectionBathrooms,
	SectionKitchen,
	SectionExteriors,
	SectionEnvironment,
}

var finalOrder = []SectionID{
	SectionEnvironment,
	SectionGeneral,
	SectionEntry,
	SectionBedrooms,
	SectionLiving,
	SectionBathrooms,
	SectionKitchen,
	SectionExteriors,
}

// SectionOrder returns the order sections are filled in and validated for t.
// Intermediate checks follow the initial order.
func SectionOrder(t Type) []SectionID {
	if t == TypeFinal {
		return finalOrder
	}
	return initialOrder
}

// environmentRequirements narrows the environment/common-areas section to the
// fields that must be reported. Everything else in that section is optional.
var environmentRequirements = struct {
	uploadZones []string
	questions   []string
}{
	uploadZones: []string{"portal", "fachada"},
	questions:   []string{"acceso-principal", "comunicaciones", "ascensor"},
}

func IsFullyReported(doc *Document) bool {
	return FirstIncompleteSection(doc) == nil
}

// FirstIncompleteSection walks the sections in checklist order and returns the
// first one missing mandatory data, or nil when everything is reported.
func FirstIncompleteSection(doc *Document) *Incomplete {
	for i, id := range SectionOrder(doc.Type) {
		s, ok := doc.Sections[id]
		var cause string
		switch {
		case !ok || s == nil:
			cause = "section has not been started"
		case id == SectionEnvironment:
			cause = checkEnvironment(s)
		default:
			cause = checkSection(s)
		}
		if cause != "" {
			return &Incomplete{
				SectionID: id,
				Position:  i + 1,
				Message:   fmt.Sprintf("%s: %s", id.Label(), cause),
			}
		}
	}
	return nil
}

func checkEnvironment(s *Section) string {
	for _, zid := range environmentRequirements.uploadZones {
		z, ok := findZone(s.UploadZones, zid)
		if !ok || !zoneHasMedia(z) {
			return fmt.Sprintf("missing photos for %q", zid)
		}
	}
	for _, qid := range environmentRequirements.questions {
		q, ok := findQuestion(s.Questions, qid)
		if !ok || !questionReported(q) {
			return fmt.Sprintf("question %q has no answer", qid)
		}
	}
	return ""
}

func checkSection(s *Section) string {
	for _, z := range s.UploadZones {
		if !zoneHasMedia(z) {
			return fmt.Sprintf("missing photos for %q", z.ID)
		}
	}
	if cause := checkQuestions(s.Questions); cause != "" {
		return cause
	}
	if cause := checkItems(s.Items); cause != "" {
		return cause
	}
	if cause := checkFurniture(s.Furniture); cause != "" {
		return cause
	}
	for i, d := range s.DynamicItems {
		if cause := checkDynamicItem(d); cause != "" {
			return fmt.Sprintf("%s: %s", DynamicItemLabel(s.ID, i), cause)
		}
	}
	return ""
}

func checkDynamicItem(d DynamicItem) string {
	if !zoneHasMedia(d.UploadZone) {
		return "missing photos"
	}
	if cause := checkQuestions(d.Questions); cause != "" {
		return cause
	}
	if cause := checkItems(d.Items); cause != "" {
		return cause
	}
	return checkFurniture(d.Furniture)
}

func checkQuestions(qs []Question) string {
	for _, q := range qs {
		if !questionReported(q) {
			return fmt.Sprintf("question %q has no answer", q.ID)
		}
	}
	return ""
}

// checkItems skips items with zero quantity. A single item needs its own data;
// a multiple item needs data on every unit.
func checkItems(items map[Category][]Item) string {
	for _, cat := range Categories {
		for _, it := range items[cat] {
			switch {
			case it.Quantity <= 0:
				continue
			case it.Quantity == 1:
				if !itemReported(it) {
					return fmt.Sprintf("item %q has no status", it.ID)
				}
			default:
				for u := range it.Quantity {
					if u >= len(it.Units) || !unitReported(it.Units[u]) {
						return fmt.Sprintf("unit %d of item %q has no status", u+1, it.ID)
					}
				}
			}
		}
	}
	return ""
}

func checkFurniture(f *Furniture) string {
	if f == nil || !f.Exists {
		return ""
	}
	if f.Question == nil || !questionReported(*f.Question) {
		return "furniture has no answer"
	}
	return ""
}

func zoneHasMedia(z UploadZone) bool {
	return len(z.Photos) > 0 || len(z.Videos) > 0
}

// reported is true when any one of the signals carries data.
func reported(status Status, notes string, photos []Attachment) bool {
	return status != "" || strings.TrimSpace(notes) != "" || len(photos) > 0
}

func questionReported(q Question) bool {
	return reported(q.Status, q.Notes, q.Photos)
}

func unitReported(u Unit) bool {
	return reported(u.Status, u.Notes, u.Photos)
}

func itemReported(it Item) bool {
	if reported(it.Status, it.Notes, it.Photos) {
		return true
	}
	for _, u := range it.Units {
		if unitReported(u) {
			return true
		}
	}
	return false
}

func findZone(zones []UploadZone, id string) (UploadZone, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return UploadZone{}, false
}

func findQuestion(qs []Question, id string) (Question, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
