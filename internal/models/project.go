package models

// ReportSection is one titled block of report text.
type ReportSection struct {
	Title   string `json:"title" msgpack:"title"`
	Content string `json:"content" msgpack:"content"`
}

// ProjectData is the text content handed to the export renderers.
type ProjectData struct {
	Title     string          `json:"title" msgpack:"title"`
	Abstract  string          `json:"abstract" msgpack:"abstract"`
	Sections  []ReportSection `json:"sections" msgpack:"sections"`
	Citations []string        `json:"citations" msgpack:"citations"`
}

// Clone returns a deep copy so renderers work on an immutable snapshot.
func (p ProjectData) Clone() ProjectData {
	out := ProjectData{Title: p.Title, Abstract: p.Abstract}
	if p.Sections != nil {
		out.Sections = make([]ReportSection, len(p.Sections))
		copy(out.Sections, p.Sections)
	}
	if p.Citations != nil {
		out.Citations = make([]string, len(p.Citations))
		copy(out.Citations, p.Citations)
	}
	return out
}

// HasContent reports whether there is anything worth exporting.
func (p ProjectData) HasContent() bool {
	return p.Title != "" || p.Abstract != "" || len(p.Sections) > 0
}
