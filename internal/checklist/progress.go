package checklist

import "math"

// Progress is the percentage of sections holding any reported content. It is
// intentionally looser than FirstIncompleteSection: a section counts as soon
// as a single photo or answer exists.
func Progress(doc *Document) int {
	order := SectionOrder(doc.Type)
	if len(order) == 0 {
		return 0
	}
	started := 0
	for _, id := range order {
		if HasContent(doc.Sections[id]) {
			started++
		}
	}
	return int(math.Round(float64(started) * 100 / float64(len(order))))
}

// HasContent reports whether any field of the section carries data.
func HasContent(s *Section) bool {
	if s == nil {
		return false
	}
	for _, z := range s.UploadZones {
		if zoneHasMedia(z) {
			return true
		}
	}
	if anyQuestion(s.Questions) || anyItem(s.Items) || furnitureHasContent(s.Furniture) {
		return true
	}
	for _, d := range s.DynamicItems {
		if zoneHasMedia(d.UploadZone) || anyQuestion(d.Questions) || anyItem(d.Items) || furnitureHasContent(d.Furniture) {
			return true
		}
	}
	return false
}

func anyQuestion(qs []Question) bool {
	for _, q := range qs {
		if questionReported(q) {
			return true
		}
	}
	return false
}

func anyItem(items map[Category][]Item) bool {
	for _, list := range items {
		for _, it := range list {
			if it.Quantity > 0 || itemReported(it) {
				return true
			}
		}
	}
	return false
}

func furnitureHasContent(f *Furniture) bool {
	return f != nil && (f.Exists || (f.Question != nil && questionReported(*f.Question)))
}
