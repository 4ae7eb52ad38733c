package checklist

import "fmt"

type SectionID string

const (
	SectionEnvironment SectionID = "environment-common-areas"
	SectionGeneral     SectionID = "general-condition"
	SectionEntry       SectionID = "entry-hallways"
	SectionBedrooms    SectionID = "bedrooms"
	SectionLiving      SectionID = "living-room"
	SectionBathrooms   SectionID = "bathrooms"
	SectionKitchen     SectionID = "kitchen"
	SectionExteriors   SectionID = "exteriors"
)

// AllSections is the closed set of section ids.
var AllSections = []SectionID{
	SectionEnvironment,
	SectionGeneral,
	SectionEntry,
	SectionBedrooms,
	SectionLiving,
	SectionBathrooms,
	SectionKitchen,
	SectionExteriors,
}

func (id SectionID) Valid() bool {
	_, ok := templates[id]
	return ok
}

// Label is the human-readable section name.
func (id SectionID) Label() string {
	if t, ok := templates[id]; ok {
		return t.label
	}
	return string(id)
}

// Counts are the property attributes that size dynamic items.
type Counts struct {
	Bedrooms  int `json:"bedrooms"`
	Bathrooms int `json:"bathrooms"`
}

type dynamicKind int

const (
	noDynamic dynamicKind = iota
	perBedroom
	perBathroom
)

type itemTemplate map[Category][]string

type dynamicTemplate struct {
	idPrefix  string
	label     string
	zone      string
	questions []string
	items     itemTemplate
	furniture bool
}

type sectionTemplate struct {
	label       string
	uploadZones []string
	questions   []string
	items       itemTemplate
	furniture   bool
	dynamic     dynamicKind
	item        dynamicTemplate
}

var roomQuestions = []string{"paredes", "suelos", "techos"}

var templates = map[SectionID]sectionTemplate{
	SectionEnvironment: {
		label:       "Environment and common areas",
		uploadZones: []string{"portal", "fachada", "entorno"},
		questions:   []string{"acceso-principal", "comunicaciones", "ascensor", "bajantes", "estado-portal"},
	},
	SectionGeneral: {
		label:       "General condition",
		uploadZones: []string{"perspectiva-general", "cuadro-electrico"},
		questions:   []string{"humedades", "grietas", "instalacion-electrica", "fontaneria"},
	},
	SectionEntry: {
		label:       "Entry and hallways",
		uploadZones: []string{"entrada", "pasillos"},
		questions:   roomQuestions,
		items: itemTemplate{
			CategoryCarpentry:     {"puerta-entrada", "puertas-paso"},
			CategoryClimatization: {"radiadores"},
			CategoryStorage:       {"armarios-empotrados"},
		},
		furniture: true,
	},
	SectionBedrooms: {
		label:   "Bedrooms",
		dynamic: perBedroom,
		item: dynamicTemplate{
			idPrefix:  "dormitorio",
			label:     "Dormitorio",
			zone:      "dormitorio",
			questions: roomQuestions,
			items: itemTemplate{
				CategoryCarpentry:     {"ventanas", "persianas", "puertas"},
				CategoryClimatization: {"radiadores", "aire-acondicionado"},
				CategoryStorage:       {"armarios-empotrados"},
			},
			furniture: true,
		},
	},
	SectionLiving: {
		label:       "Living room",
		uploadZones: []string{"salon"},
		questions:   roomQuestions,
		items: itemTemplate{
			CategoryCarpentry:     {"ventanas", "persianas", "puertas"},
			CategoryClimatization: {"radiadores", "aire-acondicionado"},
		},
		furniture: true,
	},
	SectionBathrooms: {
		label:   "Bathrooms",
		dynamic: perBathroom,
		item: dynamicTemplate{
			idPrefix:  "bano",
			label:     "Baño",
			zone:      "bano",
			questions: []string{"paredes", "suelos", "techos", "sanitarios", "griferia", "ducha-banera"},
			items: itemTemplate{
				CategoryCarpentry:     {"ventanas", "puertas"},
				CategoryClimatization: {"radiadores"},
			},
			furniture: true,
		},
	},
	SectionKitchen: {
		label:       "Kitchen",
		uploadZones: []string{"cocina"},
		questions:   []string{"paredes", "suelos", "techos", "encimera", "muebles-cocina"},
		items: itemTemplate{
			CategoryCarpentry:  {"ventanas", "persianas", "puertas"},
			CategoryAppliances: {"placa", "horno", "campana", "frigorifico", "lavadora", "lavavajillas", "microondas"},
		},
	},
	SectionExteriors: {
		label:       "Exteriors",
		uploadZones: []string{"terraza", "patio"},
		questions:   []string{"balcones", "toldos", "tendedero"},
		items: itemTemplate{
			CategorySecurity: {"puerta-blindada", "alarma", "videoportero"},
			CategorySystems:  {"caldera", "termo", "placas-solares"},
		},
	},
}

// IsDynamic reports whether the section is made of generated sub-items.
func IsDynamic(id SectionID) bool {
	return templates[id].dynamic != noDynamic
}

// DynamicCount returns how many sub-items the section gets for counts.
func DynamicCount(id SectionID, counts Counts) int {
	switch templates[id].dynamic {
	case perBedroom:
		return max(counts.Bedrooms, 0)
	case perBathroom:
		return max(counts.Bathrooms, 0)
	}
	return 0
}

// DynamicItemID returns the id of the i-th (zero-based) sub-item.
func DynamicItemID(id SectionID, i int) string {
	return fmt.Sprintf("%s-%d", templates[id].item.idPrefix, i+1)
}

// DynamicItemLabel returns the display name of the i-th (zero-based) sub-item,
// e.g. "Dormitorio 2".
func DynamicItemLabel(id SectionID, i int) string {
	return fmt.Sprintf("%s %d", templates[id].item.label, i+1)
}

// DefaultSection returns an empty section shaped by its template, or nil for
// an unknown id.
func DefaultSection(id SectionID, counts Counts) *Section {
	t, ok := templates[id]
	if !ok {
		return nil
	}
	s := &Section{ID: id}
	if len(t.uploadZones) > 0 {
		s.UploadZones = make([]UploadZone, len(t.uploadZones))
		for i, zid := range t.uploadZones {
			s.UploadZones[i] = UploadZone{ID: zid}
		}
	}
	s.Questions = defaultQuestions(t.questions)
	s.Items = defaultItems(t.items)
	if t.furniture {
		s.Furniture = defaultFurniture()
	}
	if t.dynamic != noDynamic {
		n := DynamicCount(id, counts)
		s.DynamicItems = make([]DynamicItem, n)
		for i := range n {
			s.DynamicItems[i] = defaultDynamicItem(id, t.item, i)
		}
	}
	return s
}

func defaultQuestions(ids []string) []Question {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Question, len(ids))
	for i, qid := range ids {
		out[i] = Question{ID: qid}
	}
	return out
}

func defaultItems(t itemTemplate) map[Category][]Item {
	if len(t) == 0 {
		return nil
	}
	out := make(map[Category][]Item, len(t))
	for cat, ids := range t {
		list := make([]Item, len(ids))
		for i, iid := range ids {
			list[i] = Item{ID: iid}
		}
		out[cat] = list
	}
	return out
}

func defaultFurniture() *Furniture {
	return &Furniture{Question: &Question{ID: FurnitureQuestionID}}
}

func defaultDynamicItem(id SectionID, t dynamicTemplate, i int) DynamicItem {
	d := DynamicItem{
		ID:         DynamicItemID(id, i),
		UploadZone: UploadZone{ID: t.zone},
		Questions:  defaultQuestions(t.questions),
		Items:      defaultItems(t.items),
	}
	if t.furniture {
		d.Furniture = defaultFurniture()
	}
	return d
}

// normalize coerces s into the shape of its template: unsupported capabilities
// are dropped, template entries missing from s are added in template order
// ahead of any extra entries, dynamic items are sized to dynamicCount and item
// units are sized to their quantity. s is modified in place.
func normalize(s *Section, dynamicCount int) {
	t := templates[s.ID]

	if len(t.uploadZones) == 0 {
		s.UploadZones = nil
	} else {
		s.UploadZones = mergeZones(t.uploadZones, s.UploadZones)
	}
	s.Questions = mergeQuestions(t.questions, s.Questions)
	s.Items = mergeItems(t.items, s.Items)
	s.Furniture = normalizeFurniture(t.furniture, s.Furniture)

	if t.dynamic == noDynamic {
		s.DynamicItems = nil
		return
	}
	items := make([]DynamicItem, dynamicCount)
	for i := range dynamicCount {
		def := defaultDynamicItem(s.ID, t.item, i)
		if i >= len(s.DynamicItems) {
			items[i] = def
			continue
		}
		d := s.DynamicItems[i]
		d.ID = def.ID
		if d.UploadZone.ID == "" {
			d.UploadZone.ID = def.UploadZone.ID
		}
		d.UploadZone.Photos = nilIfEmpty(d.UploadZone.Photos)
		d.UploadZone.Videos = nilIfEmpty(d.UploadZone.Videos)
		d.Questions = mergeQuestions(t.item.questions, d.Questions)
		d.Items = mergeItems(t.item.items, d.Items)
		d.Furniture = normalizeFurniture(t.item.furniture, d.Furniture)
		items[i] = d
	}
	s.DynamicItems = items
}

func mergeZones(ids []string, have []UploadZone) []UploadZone {
	byID := make(map[string]UploadZone, len(have))
	for _, z := range have {
		byID[z.ID] = z
	}
	out := make([]UploadZone, 0, len(ids)+len(have))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		z, ok := byID[id]
		if !ok {
			z = UploadZone{ID: id}
		}
		z.Photos, z.Videos = nilIfEmpty(z.Photos), nilIfEmpty(z.Videos)
		out = append(out, z)
		seen[id] = true
	}
	for _, z := range have {
		if !seen[z.ID] && z.ID != "" {
			z.Photos, z.Videos = nilIfEmpty(z.Photos), nilIfEmpty(z.Videos)
			out = append(out, z)
			seen[z.ID] = true
		}
	}
	return out
}

func mergeQuestions(ids []string, have []Question) []Question {
	if len(ids) == 0 {
		return nil
	}
	byID := make(map[string]Question, len(have))
	for _, q := range have {
		byID[q.ID] = q
	}
	out := make([]Question, 0, len(ids)+len(have))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			q = Question{ID: id}
		}
		q.Photos = nilIfEmpty(q.Photos)
		out = append(out, q)
		seen[id] = true
	}
	for _, q := range have {
		if !seen[q.ID] && q.ID != "" {
			q.Photos = nilIfEmpty(q.Photos)
			out = append(out, q)
			seen[q.ID] = true
		}
	}
	return out
}

func mergeItems(t itemTemplate, have map[Category][]Item) map[Category][]Item {
	if len(t) == 0 {
		return nil
	}
	out := make(map[Category][]Item, len(t))
	for cat, ids := range t {
		byID := make(map[string]Item, len(have[cat]))
		for _, it := range have[cat] {
			byID[it.ID] = it
		}
		list := make([]Item, 0, len(ids)+len(have[cat]))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			it, ok := byID[id]
			if !ok {
				it = Item{ID: id}
			}
			list = append(list, normalizeItem(it))
			seen[id] = true
		}
		for _, it := range have[cat] {
			if !seen[it.ID] && it.ID != "" {
				list = append(list, normalizeItem(it))
				seen[it.ID] = true
			}
		}
		out[cat] = list
	}
	return out
}

func normalizeItem(it Item) Item {
	if it.Quantity < 0 {
		it.Quantity = 0
	}
	it.Photos = nilIfEmpty(it.Photos)
	if it.Quantity <= 1 {
		it.Units = nil
		return it
	}
	units := make([]Unit, it.Quantity)
	copy(units, it.Units)
	for i := range units {
		units[i].Photos = nilIfEmpty(units[i].Photos)
	}
	it.Units = units
	return it
}

func normalizeFurniture(supported bool, f *Furniture) *Furniture {
	if !supported {
		return nil
	}
	if f == nil {
		return defaultFurniture()
	}
	out := &Furniture{Exists: f.Exists, Question: &Question{ID: FurnitureQuestionID}}
	if f.Question != nil {
		out.Question.Status = f.Question.Status
		out.Question.Notes = f.Question.Notes
		out.Question.Photos = nilIfEmpty(f.Question.Photos)
	}
	return out
}

func nilIfEmpty(in []Attachment) []Attachment {
	if len(in) == 0 {
		return nil
	}
	return in
}
