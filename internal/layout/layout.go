package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deliverable-studio/backend/internal/models"
)

// ErrIndexOutOfRange is returned by Move for invalid positions.
var ErrIndexOutOfRange = errors.New("index out of range")

// SectionOrder is the display order of the groups.
var SectionOrder = []models.Section{
	models.SectionIntroduction,
	models.SectionMethodology,
	models.SectionResults,
}

// Classify returns the suggested section for a caption using the default rules.
func Classify(caption string) models.Section {
	return defaultRules.Classify(caption)
}

// Classify matches keywords case-insensitively as substrings. Captions with
// no match get the default section.
func (r *Rules) Classify(caption string) models.Section {
	lower := strings.ToLower(caption)
	for _, s := range r.Sections {
		for _, k := range s.Keywords {
			if k != "" && strings.Contains(lower, k) {
				return s.Name
			}
		}
	}
	return r.Default
}

// Group is one section of the auto layout.
type Group struct {
	Section models.Section     `json:"section"`
	Media   []models.MediaFile `json:"media"`
}

// GroupBySection buckets entries by their Section, keeping list order inside
// each bucket. Entries without a section are classified on the fly.
func (r *Rules) GroupBySection(media []models.MediaFile) []Group {
	buckets := make(map[models.Section][]models.MediaFile, len(SectionOrder))
	for _, m := range media {
		section := m.Section
		if section == "" {
			section = r.Classify(m.DisplayCaption())
			m.Section = section
		}
		buckets[section] = append(buckets[section], m)
	}

	groups := make([]Group, 0, len(SectionOrder))
	for _, s := range SectionOrder {
		items := buckets[s]
		if items == nil {
			items = []models.MediaFile{}
		}
		groups = append(groups, Group{Section: s, Media: items})
	}
	return groups
}

// Move returns a new slice with the entry at from relocated to index to.
// The input is not modified.
func Move[T any](list []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(list) {
		return nil, fmt.Errorf("%w: from=%d len=%d", ErrIndexOutOfRange, from, len(list))
	}
	if to < 0 || to >= len(list) {
		return nil, fmt.Errorf("%w: to=%d len=%d", ErrIndexOutOfRange, to, len(list))
	}

	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)

	moved := list[from]
	out = append(out, moved)
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = moved
	return out, nil
}
