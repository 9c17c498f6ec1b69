package export

import (
	"archive/zip"
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pptxTemplates = template.Must(template.New("pptx").Funcs(template.FuncMap{
	"esc": escapeXML,
}).ParseFS(templateFS, "templates/*.tmpl"))

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// shape is a text box or picture on a slide.
type shape struct {
	ID         int
	X, Y, W, H int64
	Picture    bool
	RelID      string
	Alt        string
	Paragraphs []string
	Size       int // hundredths of a point
	Bold       bool
	Align      string
	Anchor     string
	Framed     bool
}

type imageRel struct {
	RelID string
	Name  string
}

type slide struct {
	Number  int
	SlideID int
	RelID   string
	Shapes  []shape
	Images  []imageRel
}

func (s *slide) nextShapeID() int {
	return len(s.Shapes) + 2
}

func (s *slide) text(text string, box emuBox, size int, bold bool, align string) {
	anchor := "t"
	if align == "ctr" {
		anchor = "ctr"
	}
	s.Shapes = append(s.Shapes, shape{
		ID: s.nextShapeID(), X: box.x, Y: box.y, W: box.w, H: box.h,
		Paragraphs: paragraphs(text), Size: size, Bold: bold, Align: align, Anchor: anchor,
	})
}

func (s *slide) placeholder(text string, box emuBox) {
	s.Shapes = append(s.Shapes, shape{
		ID: s.nextShapeID(), X: box.x, Y: box.y, W: box.w, H: box.h,
		Paragraphs: []string{text}, Size: 1400, Align: "ctr", Anchor: "ctr", Framed: true,
	})
}

func (s *slide) picture(mediaName string, box emuBox, alt string) {
	rel := imageRel{RelID: fmt.Sprintf("rId%d", len(s.Images)+2), Name: mediaName}
	s.Images = append(s.Images, rel)
	s.Shapes = append(s.Shapes, shape{
		ID: s.nextShapeID(), X: box.x, Y: box.y, W: box.w, H: box.h,
		Picture: true, RelID: rel.RelID, Alt: alt,
	})
}

type mediaPart struct {
	name string
	data []byte
}

// deck accumulates slides and media and writes the OPC package.
type deck struct {
	Title  string
	Width  int64
	Height int64
	Slides []*slide
	media  []mediaPart
}

func newDeck(title string) *deck {
	return &deck{Title: title, Width: slideWidth, Height: slideHeight}
}

func (d *deck) addSlide() *slide {
	n := len(d.Slides) + 1
	s := &slide{Number: n, SlideID: 255 + n, RelID: fmt.Sprintf("rId%d", n+2)}
	d.Slides = append(d.Slides, s)
	return s
}

func (d *deck) addMedia(img *embedded) string {
	name := fmt.Sprintf("image%d.%s", len(d.media)+1, img.Format)
	d.media = append(d.media, mediaPart{name: name, data: img.Data})
	return name
}

// part is one XML file of the package and the template that produces it.
type part struct {
	name string
	tmpl string
	data any
}

func (d *deck) write() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []part{
		{"[Content_Types].xml", "content_types.xml.tmpl", d},
		{"_rels/.rels", "root.rels.tmpl", d},
		{"docProps/core.xml", "core.xml.tmpl", d},
		{"docProps/app.xml", "app.xml.tmpl", d},
		{"ppt/presentation.xml", "presentation.xml.tmpl", d},
		{"ppt/_rels/presentation.xml.rels", "presentation.rels.tmpl", d},
		{"ppt/slideMasters/slideMaster1.xml", "master.xml.tmpl", d},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", "master.rels.tmpl", d},
		{"ppt/slideLayouts/slideLayout1.xml", "layout.xml.tmpl", d},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", "layout.rels.tmpl", d},
		{"ppt/theme/theme1.xml", "theme.xml.tmpl", d},
	}
	for _, s := range d.Slides {
		parts = append(parts,
			part{fmt.Sprintf("ppt/slides/slide%d.xml", s.Number), "slide.xml.tmpl", s},
			part{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", s.Number), "slide.rels.tmpl", s},
		)
	}

	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, err
		}
		if err := pptxTemplates.ExecuteTemplate(w, p.tmpl, p.data); err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
	}

	for _, m := range d.media {
		// Images are already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{Name: "ppt/media/" + m.name, Method: zip.Store})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(m.data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
