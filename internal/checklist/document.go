package checklist

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownSection is returned by callers that need to reject an id outside
// the fixed section set. The document itself silently ignores such ids.
var ErrUnknownSection = errors.New("unknown section")

// Type selects the section set ordering of a checklist.
type Type string

const (
	TypeInitial      Type = "initial"
	TypeIntermediate Type = "intermediate"
	TypeFinal        Type = "final"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeInitial, TypeIntermediate, TypeFinal:
		return t, nil
	}
	return "", fmt.Errorf("unknown checklist type %q", s)
}

// now is swapped in tests.
var now = time.Now

// Document is the in-memory inspection. Methods never mutate the receiver.
type Document struct {
	PropertyID  string                 `json:"propertyId"`
	Type        Type                   `json:"checklistType"`
	Counts      Counts                 `json:"counts"`
	Sections    map[SectionID]*Section `json:"sections"`
	LastUpdated time.Time              `json:"lastUpdated"`
}

// NewDocument builds a complete document. Sections missing from overrides get
// template defaults; overrides with unknown ids are dropped.
func NewDocument(propertyID string, t Type, overrides map[SectionID]*Section, counts Counts) *Document {
	doc := &Document{
		PropertyID:  propertyID,
		Type:        t,
		Counts:      counts,
		Sections:    make(map[SectionID]*Section, len(AllSections)),
		LastUpdated: now(),
	}
	for _, id := range AllSections {
		s, ok := overrides[id]
		if !ok || s == nil {
			doc.Sections[id] = DefaultSection(id, counts)
			continue
		}
		s = s.Clone()
		s.ID = id
		normalize(s, DynamicCount(id, counts))
		doc.Sections[id] = s
	}
	return doc
}

// Section returns a copy of the section, or nil for an unknown id.
func (d *Document) Section(id SectionID) *Section {
	return d.Sections[id].Clone()
}

// UpdateSection returns a new document with patch merged into the section.
// Unknown ids return the receiver unchanged. Dynamic items keep the count the
// document was built with.
func (d *Document) UpdateSection(id SectionID, patch SectionPatch) *Document {
	cur, ok := d.Sections[id]
	if !ok {
		return d
	}

	p := PatchFrom(&Section{
		UploadZones:  patch.UploadZones,
		Questions:    patch.Questions,
		Items:        patch.Items,
		DynamicItems: patch.DynamicItems,
		Furniture:    patch.Furniture,
	})
	next := cur.Clone()
	if patch.UploadZones != nil {
		next.UploadZones = p.UploadZones
	}
	if patch.Questions != nil {
		next.Questions = p.Questions
	}
	if patch.Items != nil {
		next.Items = p.Items
	}
	if patch.DynamicItems != nil {
		next.DynamicItems = p.DynamicItems
	}
	if patch.Furniture != nil {
		next.Furniture = p.Furniture
	}
	normalize(next, len(cur.DynamicItems))

	out := d.shallowCopy()
	out.Sections[id] = next
	out.LastUpdated = now()
	return out
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := d.shallowCopy()
	for id, s := range out.Sections {
		out.Sections[id] = s.Clone()
	}
	return out
}

func (d *Document) shallowCopy() *Document {
	out := *d
	out.Sections = make(map[SectionID]*Section, len(d.Sections))
	for id, s := range d.Sections {
		out.Sections[id] = s
	}
	return &out
}
