// Package projection converts checklist sections to and from the flat
// inspection → zone → element rows of the relational store.
package projection

import (
	"strconv"
	"strings"

	"github.com/vbonduro/renocheck/internal/checklist"
	"github.com/vbonduro/renocheck/internal/domain"
)

var zoneTypes = map[checklist.SectionID]string{
	checklist.SectionEnvironment: "entorno",
	checklist.SectionGeneral:     "estado_general",
	checklist.SectionEntry:       "entrada_pasillos",
	checklist.SectionBedrooms:    "dormitorio",
	checklist.SectionLiving:      "salon",
	checklist.SectionBathrooms:   "bano",
	checklist.SectionKitchen:     "cocina",
	checklist.SectionExteriors:   "exteriores",
}

var zoneNames = map[checklist.SectionID]string{
	checklist.SectionEnvironment: "Entorno y zonas comunes",
	checklist.SectionGeneral:     "Estado general",
	checklist.SectionEntry:       "Entrada y pasillos",
	checklist.SectionLiving:      "Salón",
	checklist.SectionKitchen:     "Cocina",
	checklist.SectionExteriors:   "Exteriores",
}

// ZoneType returns the zone_type stored for a section. ok is false for ids
// without a mapping.
func ZoneType(id checklist.SectionID) (string, bool) {
	t, ok := zoneTypes[id]
	return t, ok
}

// ZoneName returns the zone_name of the section zone, or of the i-th dynamic
// item for bedrooms and bathrooms.
func ZoneName(id checklist.SectionID, dynamicIndex int) string {
	if checklist.IsDynamic(id) {
		return checklist.DynamicItemLabel(id, dynamicIndex)
	}
	if name, ok := zoneNames[id]; ok {
		return name
	}
	return id.Label()
}

// SectionToZoneRows returns the zones a section needs: one for a plain
// section, one per dynamic item otherwise. IDs are left empty for the store to
// assign. ok is false when the section has no zone type.
func SectionToZoneRows(id checklist.SectionID, s *checklist.Section, inspectionID string) ([]*domain.Zone, bool) {
	zoneType, ok := ZoneType(id)
	if !ok {
		return nil, false
	}
	if !checklist.IsDynamic(id) {
		return []*domain.Zone{{InspectionID: inspectionID, ZoneType: zoneType, ZoneName: ZoneName(id, 0)}}, true
	}
	var n int
	if s != nil {
		n = len(s.DynamicItems)
	}
	zones := make([]*domain.Zone, n)
	for i := range n {
		zones[i] = &domain.Zone{InspectionID: inspectionID, ZoneType: zoneType, ZoneName: ZoneName(id, i)}
	}
	return zones, true
}

// ResolveZone finds the zone that owns a section's elements. dynamicIndex is
// ignored for plain sections.
func ResolveZone(id checklist.SectionID, zones []*domain.Zone, dynamicIndex int) *domain.Zone {
	zoneType, ok := ZoneType(id)
	if !ok {
		return nil
	}
	if !checklist.IsDynamic(id) {
		for _, z := range zones {
			if z.ZoneType == zoneType {
				return z
			}
		}
		return nil
	}
	return dynamicZones(id, zones)[dynamicIndex]
}

// dynamicZones maps dynamic item indexes to their zones. Zones are matched by
// the ordinal in their name; zones whose name carries no usable ordinal fill
// the remaining slots in the order given.
func dynamicZones(id checklist.SectionID, zones []*domain.Zone) map[int]*domain.Zone {
	zoneType := zoneTypes[id]
	out := make(map[int]*domain.Zone)
	var unnamed []*domain.Zone
	for _, z := range zones {
		if z.ZoneType != zoneType {
			continue
		}
		n, ok := nameOrdinal(z.ZoneName)
		if !ok || n < 1 {
			unnamed = append(unnamed, z)
			continue
		}
		if _, taken := out[n-1]; taken {
			unnamed = append(unnamed, z)
			continue
		}
		out[n-1] = z
	}
	for i := 0; len(unnamed) > 0; i++ {
		if _, taken := out[i]; !taken {
			out[i] = unnamed[0]
			unnamed = unnamed[1:]
		}
	}
	return out
}

func nameOrdinal(name string) (int, bool) {
	i := strings.LastIndexByte(name, ' ')
	n, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
