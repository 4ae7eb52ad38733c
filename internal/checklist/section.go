package checklist

// Status is the condition reported for a question, item or unit. The empty
// value means unanswered.
type Status string

const (
	StatusGood             Status = "buen_estado"
	StatusNeedsRepair      Status = "necesita_reparacion"
	StatusNeedsReplacement Status = "necesita_reemplazo"
	StatusNotApplicable    Status = "no_aplica"
)

func (s Status) Valid() bool {
	switch s {
	case "", StatusGood, StatusNeedsRepair, StatusNeedsReplacement, StatusNotApplicable:
		return true
	}
	return false
}

// Category groups quantity-tracked items.
type Category string

const (
	CategoryCarpentry     Category = "carpinteria"
	CategoryClimatization Category = "climatizacion"
	CategoryStorage       Category = "almacenamiento"
	CategoryAppliances    Category = "electrodomesticos"
	CategorySecurity      Category = "seguridad"
	CategorySystems       Category = "sistemas"
)

// Categories lists every item category in display order.
var Categories = []Category{
	CategoryCarpentry,
	CategoryClimatization,
	CategoryStorage,
	CategoryAppliances,
	CategorySecurity,
	CategorySystems,
}

// FurnitureQuestionID identifies the question attached to a furniture flag.
const FurnitureQuestionID = "mobiliario"

type UploadZone struct {
	ID     string       `json:"id"`
	Photos []Attachment `json:"photos,omitempty"`
	Videos []Attachment `json:"videos,omitempty"`
}

type Question struct {
	ID     string       `json:"id"`
	Status Status       `json:"status,omitempty"`
	Notes  string       `json:"notes,omitempty"`
	Photos []Attachment `json:"photos,omitempty"`
}

type Unit struct {
	Status Status       `json:"status,omitempty"`
	Notes  string       `json:"notes,omitempty"`
	Photos []Attachment `json:"photos,omitempty"`
}

// Item is a quantity-tracked element. When Quantity > 1, Units holds exactly
// Quantity entries; otherwise it is nil.
type Item struct {
	ID       string       `json:"id"`
	Quantity int          `json:"quantity"`
	Status   Status       `json:"status,omitempty"`
	Notes    string       `json:"notes,omitempty"`
	Photos   []Attachment `json:"photos,omitempty"`
	Units    []Unit       `json:"units,omitempty"`
}

// Furniture flags whether a room is furnished. Question only matters when
// Exists is true.
type Furniture struct {
	Exists   bool      `json:"exists"`
	Question *Question `json:"question,omitempty"`
}

// DynamicItem is one generated bedroom or bathroom.
type DynamicItem struct {
	ID         string              `json:"id"`
	UploadZone UploadZone          `json:"uploadZone"`
	Questions  []Question          `json:"questions,omitempty"`
	Items      map[Category][]Item `json:"items,omitempty"`
	Furniture  *Furniture          `json:"furniture,omitempty"`
}

// Section holds one area of the form. A nil field means the section does not
// have that capability; which capabilities apply is fixed per section by its
// template.
type Section struct {
	ID           SectionID           `json:"id"`
	UploadZones  []UploadZone        `json:"uploadZones,omitempty"`
	Questions    []Question          `json:"questions,omitempty"`
	Items        map[Category][]Item `json:"items,omitempty"`
	DynamicItems []DynamicItem       `json:"dynamicItems,omitempty"`
	Furniture    *Furniture          `json:"furniture,omitempty"`
}

// SectionPatch is a sparse update. Nil fields leave the section untouched;
// non-nil fields replace the whole top-level field.
type SectionPatch struct {
	UploadZones  []UploadZone        `json:"uploadZones,omitempty"`
	Questions    []Question          `json:"questions,omitempty"`
	Items        map[Category][]Item `json:"items,omitempty"`
	DynamicItems []DynamicItem       `json:"dynamicItems,omitempty"`
	Furniture    *Furniture          `json:"furniture,omitempty"`
}

// Merge returns p overlaid with the non-nil fields of later.
func (p SectionPatch) Merge(later SectionPatch) SectionPatch {
	if later.UploadZones != nil {
		p.UploadZones = later.UploadZones
	}
	if later.Questions != nil {
		p.Questions = later.Questions
	}
	if later.Items != nil {
		p.Items = later.Items
	}
	if later.DynamicItems != nil {
		p.DynamicItems = later.DynamicItems
	}
	if later.Furniture != nil {
		p.Furniture = later.Furniture
	}
	return p
}

// PatchFrom returns a patch that replaces every field of a section with s.
func PatchFrom(s *Section) SectionPatch {
	c := s.Clone()
	return SectionPatch{
		UploadZones:  c.UploadZones,
		Questions:    c.Questions,
		Items:        c.Items,
		DynamicItems: c.DynamicItems,
		Furniture:    c.Furniture,
	}
}

// OwnedAttachment locates an attachment inside a section. DynamicIndex is -1
// for attachments owned by the section itself.
type OwnedAttachment struct {
	DynamicIndex int
	Attachment   Attachment
}

// Attachments lists every attachment in the section in a stable order.
func (s *Section) Attachments() []OwnedAttachment {
	var out []OwnedAttachment
	s.walkAttachments(func(idx int, a Attachment) Attachment {
		out = append(out, OwnedAttachment{DynamicIndex: idx, Attachment: a})
		return a
	})
	return out
}

// MapAttachments replaces every attachment in place with fn's result.
func (s *Section) MapAttachments(fn func(dynamicIndex int, a Attachment) Attachment) {
	s.walkAttachments(fn)
}

func (s *Section) walkAttachments(fn func(int, Attachment) Attachment) {
	owned := func(idx int) func(Attachment) Attachment {
		return func(a Attachment) Attachment { return fn(idx, a) }
	}

	section := owned(-1)
	for i := range s.UploadZones {
		mapAttachments(s.UploadZones[i].Photos, section)
		mapAttachments(s.UploadZones[i].Videos, section)
	}
	mapQuestionAttachments(s.Questions, section)
	mapItemAttachments(s.Items, section)
	mapFurnitureAttachments(s.Furniture, section)

	for i := range s.DynamicItems {
		d := &s.DynamicItems[i]
		item := owned(i)
		mapAttachments(d.UploadZone.Photos, item)
		mapAttachments(d.UploadZone.Videos, item)
		mapQuestionAttachments(d.Questions, item)
		mapItemAttachments(d.Items, item)
		mapFurnitureAttachments(d.Furniture, item)
	}
}

func mapQuestionAttachments(qs []Question, fn func(Attachment) Attachment) {
	for i := range qs {
		mapAttachments(qs[i].Photos, fn)
	}
}

func mapItemAttachments(items map[Category][]Item, fn func(Attachment) Attachment) {
	for _, cat := range Categories {
		list := items[cat]
		for i := range list {
			mapAttachments(list[i].Photos, fn)
			for u := range list[i].Units {
				mapAttachments(list[i].Units[u].Photos, fn)
			}
		}
	}
}

func mapFurnitureAttachments(f *Furniture, fn func(Attachment) Attachment) {
	if f != nil && f.Question != nil {
		mapAttachments(f.Question.Photos, fn)
	}
}

// Clone returns a deep copy.
func (s *Section) Clone() *Section {
	if s == nil {
		return nil
	}
	out := &Section{
		ID:        s.ID,
		Questions: cloneQuestions(s.Questions),
		Items:     cloneItems(s.Items),
		Furniture: cloneFurniture(s.Furniture),
	}
	if s.UploadZones != nil {
		out.UploadZones = make([]UploadZone, len(s.UploadZones))
		for i, z := range s.UploadZones {
			out.UploadZones[i] = cloneZone(z)
		}
	}
	if s.DynamicItems != nil {
		out.DynamicItems = make([]DynamicItem, len(s.DynamicItems))
		for i, d := range s.DynamicItems {
			out.DynamicItems[i] = cloneDynamicItem(d)
		}
	}
	return out
}

func cloneZone(z UploadZone) UploadZone {
	return UploadZone{ID: z.ID, Photos: cloneAttachments(z.Photos), Videos: cloneAttachments(z.Videos)}
}

func cloneQuestion(q Question) Question {
	q.Photos = cloneAttachments(q.Photos)
	return q
}

func cloneQuestions(in []Question) []Question {
	if in == nil {
		return nil
	}
	out := make([]Question, len(in))
	for i, q := range in {
		out[i] = cloneQuestion(q)
	}
	return out
}

func cloneItem(it Item) Item {
	it.Photos = cloneAttachments(it.Photos)
	if it.Units != nil {
		units := make([]Unit, len(it.Units))
		for i, u := range it.Units {
			u.Photos = cloneAttachments(u.Photos)
			units[i] = u
		}
		it.Units = units
	}
	return it
}

func cloneItems(in map[Category][]Item) map[Category][]Item {
	if in == nil {
		return nil
	}
	out := make(map[Category][]Item, len(in))
	for cat, list := range in {
		cp := make([]Item, len(list))
		for i, it := range list {
			cp[i] = cloneItem(it)
		}
		out[cat] = cp
	}
	return out
}

func cloneFurniture(f *Furniture) *Furniture {
	if f == nil {
		return nil
	}
	out := &Furniture{Exists: f.Exists}
	if f.Question != nil {
		q := cloneQuestion(*f.Question)
		out.Question = &q
	}
	return out
}

func cloneDynamicItem(d DynamicItem) DynamicItem {
	return DynamicItem{
		ID:         d.ID,
		UploadZone: cloneZone(d.UploadZone),
		Questions:  cloneQuestions(d.Questions),
		Items:      cloneItems(d.Items),
		Furniture:  cloneFurniture(d.Furniture),
	}
}
