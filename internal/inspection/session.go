package inspection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/domain"
	"github.com/vbonduro/renocheck/internal/projection"
)

// Session owns one (property, checklist type) inspection. All state lives
// behind mu; I/O runs with mu released.
type Session struct {
	deps Deps
	key  Key

	initGroup singleflight.Group

	mu         sync.Mutex
	state      State
	err        error
	property   *domain.Property
	inspection *domain.Inspection
	zones      []*domain.Zone
	elements   int
	doc        *checklist.Document
	current    checklist.SectionID
	// dirty holds sections edited locally since they were last saved.
	dirty map[checklist.SectionID]bool
	// pending collects edits made while a save is in flight.
	pending map[checklist.SectionID]checklist.SectionPatch
	busy    bool
	timer   *time.Timer
	closed  bool
}

func NewSession(deps Deps, key Key) *Session {
	return &Session{
		deps:  deps,
		key:   key,
		state: StateIdle,
		dirty: make(map[checklist.SectionID]bool),
	}
}

func (s *Session) Key() Key { return s.key }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to StateFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Document returns a copy of the current document, or nil before loading.
func (s *Session) Document() *checklist.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	return s.doc.Clone()
}

func (s *Session) Inspection() *domain.Inspection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inspection == nil {
		return nil
	}
	in := *s.inspection
	return &in
}

func (s *Session) Property() *domain.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.property == nil {
		return nil
	}
	p := *s.property
	return &p
}

// CurrentSection is the section the next SaveCurrentSection persists.
func (s *Session) CurrentSection() checklist.SectionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Initialize loads the inspection, creating the inspection row and any missing
// zones on the way. Concurrent calls share one run. Once loaded with zones the
// call is a no-op, even while a save runs; use Refresh to reload.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.doc != nil && s.state != StateFailed && len(s.zones) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.reload(ctx)
}

// Refresh reloads the document when the row counts in the store differ from
// what the session last saw, which means another writer touched the
// inspection. It reports whether a reload happened.
func (s *Session) Refresh(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateLoaded || s.inspection == nil {
		s.mu.Unlock()
		return false, ErrNotLoaded
	}
	if s.busy {
		s.mu.Unlock()
		return false, ErrBusy
	}
	id, zones, elements := s.inspection.ID, len(s.zones), s.elements
	s.mu.Unlock()

	nz, ne, err := s.deps.Inspections.RowCounts(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to refresh inspection: %w", err)
	}
	if nz == zones && ne == elements {
		return false, nil
	}

	s.deps.logger().Info("inspection changed externally, reloading",
		"property_id", s.key.PropertyID, "inspection_id", id,
		"zones", nz, "elements", ne)
	if err := s.reload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// reload runs load as the session's single writer. Concurrent callers share
// one run; saves and finalizes started meanwhile are skipped or refused, and
// edits made meanwhile are re-applied on top of the loaded document.
func (s *Session) reload(ctx context.Context) error {
	_, err, _ := s.initGroup.Do("init", func() (any, error) {
		s.mu.Lock()
		if s.busy {
			s.mu.Unlock()
			return nil, ErrBusy
		}
		s.busy = true
		s.state = StateLocatingInspection
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}()
		return nil, s.load(ctx)
	})
	return err
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()
	s.deps.logger().Error("inspection failed to load",
		"property_id", s.key.PropertyID, "type", s.key.Type, "error", err)
	return err
}

// load must run inside reload.
func (s *Session) load(ctx context.Context) error {
	log := s.deps.logger()

	prop, err := s.deps.Properties.GetByID(ctx, s.key.PropertyID)
	if err != nil {
		return s.fail(fmt.Errorf("failed to load property: %w", err))
	}
	if prop == nil {
		return s.fail(fmt.Errorf("%w: %s", ErrPropertyNotFound, s.key.PropertyID))
	}
	counts := checklist.Counts{Bedrooms: prop.Bedrooms, Bathrooms: prop.Bathrooms}

	in, err := s.deps.Inspections.FindLatest(ctx, prop.ID, string(s.key.Type))
	if err != nil {
		return s.fail(fmt.Errorf("failed to locate inspection: %w", err))
	}
	if in == nil {
		s.setState(StateCreatingInspection)
		in, err = s.deps.Inspections.Create(ctx, &domain.Inspection{
			PropertyID:     prop.ID,
			InspectionType: string(s.key.Type),
			HasElevator:    prop.HasElevator,
		})
		if err != nil {
			return s.fail(fmt.Errorf("failed to create inspection: %w", err))
		}
		log.Info("inspection created", "property_id", prop.ID, "inspection_id", in.ID, "type", s.key.Type)
	}

	zones, err := s.deps.Zones.ListByInspection(ctx, in.ID)
	if err != nil {
		return s.fail(fmt.Errorf("failed to list zones: %w", err))
	}

	s.setState(StateCreatingZones)
	skeleton := checklist.NewDocument(prop.ID, s.key.Type, nil, counts)
	for _, id := range checklist.AllSections {
		want, ok := projection.SectionToZoneRows(id, skeleton.Sections[id], in.ID)
		if !ok {
			log.Warn("no zone type for section, skipping", "section", id)
			continue
		}
		for i, z := range want {
			if projection.ResolveZone(id, zones, i) != nil {
				continue
			}
			created, err := s.deps.Zones.Create(ctx, z)
			if err != nil {
				return s.fail(fmt.Errorf("failed to create zone %q: %w", z.ZoneName, err))
			}
			zones = append(zones, created)
		}
	}

	elements, err := s.deps.Elements.ListByInspection(ctx, in.ID)
	if err != nil {
		return s.fail(fmt.Errorf("failed to list elements: %w", err))
	}
	doc := checklist.NewDocument(prop.ID, s.key.Type, projection.RowsToSections(zones, elements, counts), counts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.property = prop
	s.inspection = in
	s.err = nil
	s.install(doc, zones, len(elements), nil)
	s.state = StateLoaded
	log.Info("inspection loaded",
		"property_id", prop.ID, "inspection_id", in.ID, "type", s.key.Type,
		"zones", len(zones), "elements", len(elements))
	return nil
}

// install replaces the document with one rebuilt from the store. Local edits
// to sections that were not just saved survive, and patches made while saving
// are applied on top of the saved sections. Must be called with mu held.
func (s *Session) install(doc *checklist.Document, zones []*domain.Zone, elements int, saved []checklist.SectionID) {
	if s.closed {
		return
	}
	justSaved := make(map[checklist.SectionID]bool, len(saved))
	for _, id := range saved {
		justSaved[id] = true
	}
	if s.doc != nil {
		for id := range s.dirty {
			if justSaved[id] {
				continue
			}
			if local := s.doc.Sections[id]; local != nil {
				doc = doc.UpdateSection(id, checklist.PatchFrom(local))
			}
		}
	}
	for id, patch := range s.pending {
		doc = doc.UpdateSection(id, patch)
		s.dirty[id] = true
	}
	s.pending = nil
	s.doc = doc
	s.zones = zones
	s.elements = elements
}

// UpdateSection merges patch into the local document without persisting it
// and makes id the current section.
func (s *Session) UpdateSection(id checklist.SectionID, patch checklist.SectionPatch) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %s", checklist.ErrUnknownSection, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNotLoaded
	}
	s.doc = s.doc.UpdateSection(id, patch)
	s.current = id
	s.dirty[id] = true
	if s.busy {
		if s.pending == nil {
			s.pending = make(map[checklist.SectionID]checklist.SectionPatch)
		}
		s.pending[id] = s.pending[id].Merge(patch)
	}
	s.armAutosave()
	return nil
}

// armAutosave must be called with mu held.
func (s *Session) armAutosave() {
	if s.deps.AutosaveDelay <= 0 || s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.deps.AutosaveDelay, s.autosave)
}

func (s *Session) autosave() {
	res, err := s.SaveCurrentSection(context.Background())
	if err != nil {
		s.deps.logger().Error("autosave failed", "property_id", s.key.PropertyID, "error", err)
		return
	}
	if res.Skipped {
		s.mu.Lock()
		s.armAutosave()
		s.mu.Unlock()
	}
}

// Close stops pending timers. Operations already running finish, but their
// results no longer update the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
