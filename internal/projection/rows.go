package projection

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/domain"
)

// RowsToSections rebuilds every section from stored rows. Sections start from
// their template so dynamic items are sized by counts even when their zones do
// not exist yet. Element names the template does not know are appended in name
// order.
func RowsToSections(zones []*domain.Zone, elements []*domain.Element, counts checklist.Counts) map[checklist.SectionID]*checklist.Section {
	byZone := make(map[string][]*domain.Element)
	for _, e := range elements {
		byZone[e.ZoneID] = append(byZone[e.ZoneID], e)
	}
	for _, list := range byZone {
		sort.Slice(list, func(i, j int) bool { return list[i].ElementName < list[j].ElementName })
	}

	out := make(map[checklist.SectionID]*checklist.Section, len(checklist.AllSections))
	for _, id := range checklist.AllSections {
		s := checklist.DefaultSection(id, counts)
		out[id] = s

		if !checklist.IsDynamic(id) {
			if zone := ResolveZone(id, zones, 0); zone != nil {
				t := target{
					zones:     &s.UploadZones,
					questions: &s.Questions,
					items:     &s.Items,
					furniture: &s.Furniture,
				}
				t.apply(byZone[zone.ID])
			}
			continue
		}

		byIndex := dynamicZones(id, zones)
		for i := range s.DynamicItems {
			zone := byIndex[i]
			if zone == nil {
				continue
			}
			d := &s.DynamicItems[i]
			t := target{
				zone:      &d.UploadZone,
				questions: &d.Questions,
				items:     &d.Items,
				furniture: &d.Furniture,
			}
			t.apply(byZone[zone.ID])
		}
	}
	return out
}

// target points at the fields of a section or of one dynamic item. Exactly
// one of zones and zone is set.
type target struct {
	zones     *[]checklist.UploadZone
	zone      *checklist.UploadZone
	questions *[]checklist.Question
	items     *map[checklist.Category][]checklist.Item
	furniture **checklist.Furniture
}

type unitRow struct {
	cat    checklist.Category
	itemID string
	n      int
	e      *domain.Element
}

// apply writes elements into t. Units are applied after their items so the
// parent exists regardless of name order.
func (t target) apply(elements []*domain.Element) {
	var units []unitRow
	for _, e := range elements {
		name := e.ElementName
		switch {
		case name == checklist.FurnitureQuestionID && *t.furniture != nil:
			t.setFurniture(e)
		case strings.HasPrefix(name, photosPrefix):
			if z := t.uploadZone(strings.TrimPrefix(name, photosPrefix)); z != nil {
				z.Photos = attachmentsFrom(e.ImageURLs, e)
			}
		case strings.HasPrefix(name, videosPrefix):
			if z := t.uploadZone(strings.TrimPrefix(name, videosPrefix)); z != nil {
				z.Videos = attachmentsFrom(e.VideoURLs, e)
			}
		default:
			cat, rest, ok := splitCategory(name)
			if !ok {
				t.setQuestion(e)
				continue
			}
			if itemID, n, ok := splitUnit(rest); ok {
				units = append(units, unitRow{cat: cat, itemID: itemID, n: n, e: e})
				continue
			}
			t.setItem(cat, rest, e)
		}
	}
	for _, u := range units {
		t.setUnit(u)
	}
}

func (t target) uploadZone(id string) *checklist.UploadZone {
	if t.zone != nil {
		if t.zone.ID == "" {
			t.zone.ID = id
		}
		if t.zone.ID != id {
			return nil
		}
		return t.zone
	}
	zones := *t.zones
	for i := range zones {
		if zones[i].ID == id {
			return &zones[i]
		}
	}
	*t.zones = append(zones, checklist.UploadZone{ID: id})
	return &(*t.zones)[len(*t.zones)-1]
}

func (t target) setQuestion(e *domain.Element) {
	q := checklist.Question{
		ID:     e.ElementName,
		Status: checklist.Status(e.Condition),
		Notes:  e.Notes,
		Photos: attachmentsFrom(e.ImageURLs, e),
	}
	qs := *t.questions
	for i := range qs {
		if qs[i].ID == q.ID {
			qs[i] = q
			return
		}
	}
	*t.questions = append(qs, q)
}

func (t target) setFurniture(e *domain.Element) {
	f := &checklist.Furniture{
		Question: &checklist.Question{
			ID:     checklist.FurnitureQuestionID,
			Status: checklist.Status(e.Condition),
			Notes:  e.Notes,
			Photos: attachmentsFrom(e.ImageURLs, e),
		},
	}
	if e.Exists != nil {
		f.Exists = *e.Exists
	}
	*t.furniture = f
}

func (t target) item(cat checklist.Category, id string) *checklist.Item {
	if *t.items == nil {
		*t.items = make(map[checklist.Category][]checklist.Item)
	}
	list := (*t.items)[cat]
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	(*t.items)[cat] = append(list, checklist.Item{ID: id})
	list = (*t.items)[cat]
	return &list[len(list)-1]
}

func (t target) setItem(cat checklist.Category, id string, e *domain.Element) {
	it := t.item(cat, id)
	it.Status = checklist.Status(e.Condition)
	it.Notes = e.Notes
	it.Photos = attachmentsFrom(e.ImageURLs, e)
	it.Quantity = 0
	if e.Quantity != nil {
		it.Quantity = *e.Quantity
	}
}

func (t target) setUnit(u unitRow) {
	it := t.item(u.cat, u.itemID)
	for len(it.Units) < u.n {
		it.Units = append(it.Units, checklist.Unit{})
	}
	it.Units[u.n-1] = checklist.Unit{
		Status: checklist.Status(u.e.Condition),
		Notes:  u.e.Notes,
		Photos: attachmentsFrom(u.e.ImageURLs, u.e),
	}
}

func splitCategory(name string) (checklist.Category, string, bool) {
	for _, cat := range checklist.Categories {
		if rest, ok := strings.CutPrefix(name, string(cat)+"-"); ok && rest != "" {
			return cat, rest, true
		}
	}
	return "", "", false
}

func splitUnit(rest string) (string, int, bool) {
	i := strings.LastIndex(rest, unitInfix)
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(rest[i+len(unitInfix):])
	if err != nil || n < 1 {
		return "", 0, false
	}
	return rest[:i], n, true
}

// attachmentsFrom rebuilds attachments from stored payloads. Uploaded files are
// named after their attachment id, so the id is recovered from the URL. Inline
// payloads get a positional id that includes the zone, since bedrooms and
// bathrooms repeat element names.
func attachmentsFrom(payloads []string, owner *domain.Element) []checklist.Attachment {
	if len(payloads) == 0 {
		return nil
	}
	out := make([]checklist.Attachment, len(payloads))
	for i, p := range payloads {
		a := checklist.Attachment{Data: p}
		if a.IsUploaded() {
			a.ID = idFromURL(p)
		}
		if a.ID == "" {
			a.ID = fmt.Sprintf("%s-%s-%d", owner.ZoneID, owner.ElementName, i+1)
		}
		out[i] = a
	}
	return out
}

func idFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
