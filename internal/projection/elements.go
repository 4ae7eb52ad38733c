package projection

import (
	"fmt"

	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/domain"
)

const (
	photosPrefix = "fotos-"
	videosPrefix = "videos-"
	unitInfix    = "-unidad-"
)

// PhotosElement names the photo collection of an upload zone.
func PhotosElement(zoneID string) string { return photosPrefix + zoneID }

func VideosElement(zoneID string) string { return videosPrefix + zoneID }

func ItemElement(cat checklist.Category, itemID string) string {
	return fmt.Sprintf("%s-%s", cat, itemID)
}

// UnitElement names the n-th (1-based) unit of an item.
func UnitElement(cat checklist.Category, itemID string, n int) string {
	return fmt.Sprintf("%s-%s%s%d", cat, itemID, unitInfix, n)
}

// SectionToElementRows flattens a section into element rows bound to zones.
// Attachment data is copied as is, so uploads must be resolved beforehand.
// Every template field gets a row, including empty ones, so that clearing a
// field overwrites what was stored.
func SectionToElementRows(id checklist.SectionID, s *checklist.Section, zones []*domain.Zone) ([]*domain.Element, error) {
	if _, ok := ZoneType(id); !ok {
		return nil, fmt.Errorf("section %q has no zone type", id)
	}
	if s == nil {
		return nil, nil
	}

	var out []*domain.Element
	if !checklist.IsDynamic(id) {
		zone := ResolveZone(id, zones, 0)
		if zone == nil {
			return nil, fmt.Errorf("no zone for section %q", id)
		}
		b := builder{zoneID: zone.ID}
		for _, z := range s.UploadZones {
			b.zone(z)
		}
		b.questions(s.Questions)
		b.items(s.Items)
		b.furniture(s.Furniture)
		out = b.rows
	}

	byIndex := dynamicZones(id, zones)
	for i, d := range s.DynamicItems {
		zone := byIndex[i]
		if zone == nil {
			return nil, fmt.Errorf("no zone for %s", checklist.DynamicItemLabel(id, i))
		}
		b := builder{zoneID: zone.ID}
		b.zone(d.UploadZone)
		b.questions(d.Questions)
		b.items(d.Items)
		b.furniture(d.Furniture)
		out = append(out, b.rows...)
	}
	return out, nil
}

type builder struct {
	zoneID string
	rows   []*domain.Element
}

func (b *builder) add(e *domain.Element) {
	e.ZoneID = b.zoneID
	b.rows = append(b.rows, e)
}

func (b *builder) zone(z checklist.UploadZone) {
	if z.ID == "" {
		return
	}
	b.add(&domain.Element{ElementName: PhotosElement(z.ID), ImageURLs: urls(z.Photos)})
	b.add(&domain.Element{ElementName: VideosElement(z.ID), VideoURLs: urls(z.Videos)})
}

func (b *builder) questions(qs []checklist.Question) {
	for _, q := range qs {
		if q.ID == "" {
			continue
		}
		b.add(&domain.Element{
			ElementName: q.ID,
			Condition:   string(q.Status),
			Notes:       q.Notes,
			ImageURLs:   urls(q.Photos),
		})
	}
}

func (b *builder) items(items map[checklist.Category][]checklist.Item) {
	for _, cat := range checklist.Categories {
		for _, it := range items[cat] {
			if it.ID == "" {
				continue
			}
			qty := it.Quantity
			b.add(&domain.Element{
				ElementName: ItemElement(cat, it.ID),
				Condition:   string(it.Status),
				Notes:       it.Notes,
				ImageURLs:   urls(it.Photos),
				Quantity:    &qty,
			})
			for n, u := range it.Units {
				b.add(&domain.Element{
					ElementName: UnitElement(cat, it.ID, n+1),
					Condition:   string(u.Status),
					Notes:       u.Notes,
					ImageURLs:   urls(u.Photos),
				})
			}
		}
	}
}

func (b *builder) furniture(f *checklist.Furniture) {
	if f == nil {
		return
	}
	exists := f.Exists
	e := &domain.Element{ElementName: checklist.FurnitureQuestionID, Exists: &exists}
	if f.Question != nil {
		e.Condition = string(f.Question.Status)
		e.Notes = f.Question.Notes
		e.ImageURLs = urls(f.Question.Photos)
	}
	b.add(e)
}

func urls(atts []checklist.Attachment) []string {
	out := make([]string, len(atts))
	for i, a := range atts {
		out[i] = a.Data
	}
	return out
}
