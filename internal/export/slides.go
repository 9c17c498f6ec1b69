package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/deliverable-studio/backend/internal/models"
)

// Slide grid.
const (
	GridColumns   = 3
	GridRows      = 2
	TilesPerSlide = GridColumns * GridRows
)

// SlideKind is the layout of a slide.
type SlideKind string

const (
	SlideTitle      SlideKind = "title"
	SlideSection    SlideKind = "section"
	SlideFigures    SlideKind = "figures"
	SlideReferences SlideKind = "references"
)

// Tile is one image cell on a figures slide.
type Tile struct {
	Media   int
	Caption string
}

// SlidePlan describes the content of one slide.
type SlidePlan struct {
	Kind  SlideKind
	Title string
	Body  []string
	Tiles []Tile
}

// PlanDeck orders the slides: title, one per section, figure grids and
// references.
func PlanDeck(project models.ProjectData, media []models.MediaFile) []SlidePlan {
	title := strings.TrimSpace(project.Title)
	if title == "" {
		title = "Untitled Project"
	}
	slides := []SlidePlan{{Kind: SlideTitle, Title: title, Body: nonEmpty(project.Abstract)}}

	for _, s := range project.Sections {
		slides = append(slides, SlidePlan{Kind: SlideSection, Title: s.Title, Body: paragraphs(s.Content)})
	}

	pages := ceilDiv(len(media), TilesPerSlide)
	for k := 0; k < pages; k++ {
		slide := SlidePlan{Kind: SlideFigures, Title: fmt.Sprintf("Figures (%d/%d)", k+1, pages)}
		for i := k * TilesPerSlide; i < len(media) && i < (k+1)*TilesPerSlide; i++ {
			slide.Tiles = append(slide.Tiles, Tile{Media: i, Caption: media[i].DisplayCaption()})
		}
		slides = append(slides, slide)
	}

	if len(project.Citations) > 0 {
		refs := make([]string, len(project.Citations))
		for i, c := range project.Citations {
			refs[i] = fmt.Sprintf("[%d] %s", i+1, c)
		}
		slides = append(slides, SlidePlan{Kind: SlideReferences, Title: "References", Body: refs})
	}
	return slides
}

func nonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{strings.TrimSpace(s)}
}

func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlidesRenderer writes a 16:9 PPTX deck.
type SlidesRenderer struct{}

// NewSlidesRenderer creates the slide deck renderer.
func NewSlidesRenderer() *SlidesRenderer {
	return &SlidesRenderer{}
}

// Format implements Renderer.
func (r *SlidesRenderer) Format() Format { return FormatPPTX }

// Render implements Renderer. Images that cannot be loaded become a text
// tile reading "Image unavailable".
func (r *SlidesRenderer) Render(ctx context.Context, in Input) (*Output, error) {
	plan := PlanDeck(in.Project, in.Media)
	deck := newDeck(in.Project.Title)

	for _, sp := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := deck.addSlide()
		switch sp.Kind {
		case SlideTitle:
			s.text(sp.Title, emuBox{x: slideMargin, y: 2286000, w: slideWidth - 2*slideMargin, h: 1143000}, 4000, true, "ctr")
			if len(sp.Body) > 0 {
				s.text(strings.Join(sp.Body, "\n"), emuBox{x: 1371600, y: 3543300, w: slideWidth - 2*1371600, h: 2286000}, 1600, false, "ctr")
			}
		case SlideSection, SlideReferences:
			s.text(sp.Title, titleBox(), 2800, true, "l")
			s.text(strings.Join(sp.Body, "\n"), emuBox{x: slideMargin, y: 1371600, w: slideWidth - 2*slideMargin, h: slideHeight - 1371600 - slideMargin}, 1600, false, "l")
		case SlideFigures:
			s.text(sp.Title, titleBox(), 2800, true, "l")
			for pos, tile := range sp.Tiles {
				r.placeTile(ctx, deck, s, in, pos, tile)
			}
		}
	}

	data, err := deck.write()
	if err != nil {
		return nil, fmt.Errorf("failed to write slide deck: %w", err)
	}
	return &Output{
		FileName:    SanitizeTitle(in.Project.Title) + ".pptx",
		ContentType: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		Data:        data,
		Pages:       len(plan),
	}, nil
}

func (r *SlidesRenderer) placeTile(ctx context.Context, deck *deck, s *slide, in Input, pos int, tile Tile) {
	cell := gridCell(pos)
	pictureArea := emuBox{x: cell.x, y: cell.y, w: cell.w, h: cell.h - captionHeight}
	captionArea := emuBox{x: cell.x, y: cell.y + cell.h - captionHeight, w: cell.w, h: captionHeight}

	img, err := loadEmbedded(ctx, in.Resolve, in.Media[tile.Media])
	if err != nil {
		s.placeholder("Image unavailable", pictureArea)
	} else {
		s.picture(deck.addMedia(img), fitBox(pictureArea, img.aspect()), in.Media[tile.Media].AltText)
	}
	s.text(tile.Caption, captionArea, 1100, false, "ctr")
}

// Slide geometry in EMU (914400 per inch), 13.333 x 7.5 inches.
const (
	slideWidth    = 12192000
	slideHeight   = 6858000
	slideMargin   = 457200
	gridGap       = 228600
	gridTop       = 1280160
	captionHeight = 365760
)

type emuBox struct {
	x, y, w, h int64
}

func titleBox() emuBox {
	return emuBox{x: slideMargin, y: 320040, w: slideWidth - 2*slideMargin, h: 822960}
}

func gridCell(pos int) emuBox {
	col := int64(pos % GridColumns)
	row := int64(pos / GridColumns)
	w := int64(slideWidth-2*slideMargin-(GridColumns-1)*gridGap) / GridColumns
	h := int64(slideHeight-gridTop-slideMargin-(GridRows-1)*gridGap) / GridRows
	return emuBox{
		x: slideMargin + col*(w+gridGap),
		y: gridTop + row*(h+gridGap),
		w: w,
		h: h,
	}
}

// fitBox centres the largest box of the given aspect ratio inside area.
func fitBox(area emuBox, aspect float64) emuBox {
	w, h := area.w, int64(float64(area.w)/aspect)
	if h > area.h {
		h = area.h
		w = int64(float64(area.h) * aspect)
	}
	return emuBox{x: area.x + (area.w-w)/2, y: area.y + (area.h-h)/2, w: w, h: h}
}
