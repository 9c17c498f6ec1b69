package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deliverable-studio/backend/internal/models"
	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// A4 portrait in millimetres.
const (
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
	MarginMM     = 20.0

	contentWidthMM  = PageWidthMM - 2*MarginMM
	contentHeightMM = PageHeightMM - 2*MarginMM
	ptToMM          = 0.3528
	lineSpacing     = 1.3
)

// FontSpec is a font style and size in points.
type FontSpec struct {
	Style string
	Size  float64
}

// LineHeight returns the line advance in millimetres.
func (f FontSpec) LineHeight() float64 {
	return f.Size * ptToMM * lineSpacing
}

var (
	fontTitle   = FontSpec{Style: "B", Size: 22}
	fontHeading = FontSpec{Style: "B", Size: 14}
	fontBody    = FontSpec{Style: "", Size: 11}
	fontCaption = FontSpec{Style: "I", Size: 10}
)

// TextMeasurer wraps text to a width for a font.
type TextMeasurer interface {
	Wrap(text string, font FontSpec, width float64) []string
}

// OpKind is the kind of a drawing operation.
type OpKind int

const (
	OpText OpKind = iota
	OpImage
	OpNewPage
)

// DrawOp is one positioned element of a document.
type DrawOp struct {
	Kind  OpKind
	Page  int
	X, Y  float64
	W, H  float64
	Text  string
	Font  FontSpec
	Media int // index into the media list for OpImage
}

// DocumentPlan is the full layout of a report, computed before drawing.
type DocumentPlan struct {
	Ops      []DrawOp
	Pages    int
	Captions []string
}

type planner struct {
	measure TextMeasurer
	plan    DocumentPlan
	y       float64
}

func (p *planner) ensure(h float64) {
	if p.y+h <= PageHeightMM-MarginMM || p.y == MarginMM {
		return
	}
	p.plan.Pages++
	p.y = MarginMM
	p.plan.Ops = append(p.plan.Ops, DrawOp{Kind: OpNewPage, Page: p.plan.Pages})
}

func (p *planner) text(s string, font FontSpec) {
	lh := font.LineHeight()
	for _, paragraph := range strings.Split(s, "\n") {
		lines := p.measure.Wrap(paragraph, font, contentWidthMM)
		if len(lines) == 0 {
			lines = []string{""}
		}
		for _, line := range lines {
			p.ensure(lh)
			p.plan.Ops = append(p.plan.Ops, DrawOp{
				Kind: OpText, Page: p.plan.Pages,
				X: MarginMM, Y: p.y, W: contentWidthMM, H: lh,
				Text: line, Font: font,
			})
			p.y += lh
		}
	}
}

func (p *planner) gap(mm float64) {
	p.y += mm
}

func (p *planner) heading(s string) {
	// Keep a heading on the same page as the first body line.
	p.ensure(fontHeading.LineHeight() + fontBody.LineHeight())
	p.text(s, fontHeading)
	p.gap(2)
}

// figureBox fits an image into the content width, also capped so that the
// image and its caption fit on one page.
func figureBox(aspect float64, captionH float64) (float64, float64) {
	w := contentWidthMM
	h := w / aspect
	maxH := contentHeightMM - captionH - 2
	if h > maxH {
		h = maxH
		w = h * aspect
	}
	return w, h
}

// PlanDocument lays out the report: title, abstract, sections, figures and
// references. It has no side effects.
func PlanDocument(project models.ProjectData, media []models.MediaFile, measure TextMeasurer) DocumentPlan {
	p := &planner{measure: measure, plan: DocumentPlan{Pages: 1}, y: MarginMM}

	title := strings.TrimSpace(project.Title)
	if title == "" {
		title = "Untitled Project"
	}
	p.text(title, fontTitle)
	p.gap(6)

	if strings.TrimSpace(project.Abstract) != "" {
		p.heading("Abstract")
		p.text(project.Abstract, fontBody)
		p.gap(6)
	}

	for _, s := range project.Sections {
		p.heading(s.Title)
		p.text(s.Content, fontBody)
		p.gap(6)
	}

	if len(media) > 0 {
		p.heading("Figures")
		for i, m := range media {
			caption := fmt.Sprintf("Figure %d: %s", i+1, m.DisplayCaption())
			captionLines := measure.Wrap(caption, fontCaption, contentWidthMM)
			captionH := float64(max(len(captionLines), 1)) * fontCaption.LineHeight()

			w, h := figureBox(mediaAspect(m), captionH)
			p.ensure(h + 2 + captionH)
			p.plan.Ops = append(p.plan.Ops, DrawOp{
				Kind: OpImage, Page: p.plan.Pages,
				X: MarginMM + (contentWidthMM-w)/2, Y: p.y, W: w, H: h,
				Media: i,
			})
			p.y += h + 2
			p.text(caption, fontCaption)
			p.plan.Captions = append(p.plan.Captions, caption)
			p.gap(6)
		}
	}

	if len(project.Citations) > 0 {
		p.heading("References")
		for i, c := range project.Citations {
			p.text(fmt.Sprintf("[%d] %s", i+1, c), fontBody)
			p.gap(1)
		}
	}

	return p.plan
}

// fpdfMeasurer wraps text with the core Helvetica metrics of an fpdf document.
type fpdfMeasurer struct {
	pdf *fpdf.Fpdf
}

func (m fpdfMeasurer) Wrap(text string, font FontSpec, width float64) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.pdf.SetFont(documentFont, font.Style, font.Size)
	return m.pdf.SplitText(latin1(text), width)
}

// latin1 replaces runes the core fonts have no metrics for.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return '?'
		}
		return r
	}, s)
}

const documentFont = "Helvetica"

var disableConfigDir sync.Once

// DocumentRenderer writes an A4 PDF report.
type DocumentRenderer struct {
	compress bool
}

// NewDocumentRenderer creates the PDF renderer.
func NewDocumentRenderer() *DocumentRenderer {
	disableConfigDir.Do(api.DisableConfigDir)
	return &DocumentRenderer{compress: true}
}

// Format implements Renderer.
func (r *DocumentRenderer) Format() Format { return FormatPDF }

// Render implements Renderer. Images that cannot be loaded are replaced by
// a framed placeholder; any other failure aborts the export.
func (r *DocumentRenderer) Render(ctx context.Context, in Input) (*Output, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(MarginMM, MarginMM, MarginMM)
	pdf.SetAutoPageBreak(false, MarginMM)
	pdf.SetCompression(r.compress)
	pdf.SetTitle(in.Project.Title, true)
	pdf.SetCreator("Deliverable Studio", false)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	plan := PlanDocument(in.Project, in.Media, fpdfMeasurer{pdf: pdf})

	for _, op := range plan.Ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch op.Kind {
		case OpNewPage:
			pdf.AddPage()
		case OpText:
			pdf.SetFont(documentFont, op.Font.Style, op.Font.Size)
			pdf.SetXY(op.X, op.Y)
			pdf.CellFormat(op.W, op.H, tr(op.Text), "", 0, "L", false, 0, "")
		case OpImage:
			r.drawImage(ctx, pdf, in, op, tr)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to build document: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	pages, err := CountPages(buf.Bytes())
	if err != nil {
		return nil, err
	}

	return &Output{
		FileName:    SanitizeTitle(in.Project.Title) + ".pdf",
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
		Pages:       pages,
	}, nil
}

func (r *DocumentRenderer) drawImage(ctx context.Context, pdf *fpdf.Fpdf, in Input, op DrawOp, tr func(string) string) {
	m := in.Media[op.Media]
	img, err := loadEmbedded(ctx, in.Resolve, m)
	if err == nil {
		name := fmt.Sprintf("figure-%d", op.Media)
		opts := fpdf.ImageOptions{ImageType: imageType(img.Format)}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		if !pdf.Ok() {
			err = pdf.Error()
			pdf.ClearError()
		} else {
			pdf.ImageOptions(name, op.X, op.Y, op.W, op.H, false, opts, 0, "")
			return
		}
	}

	pdf.SetDrawColor(180, 180, 180)
	pdf.Rect(op.X, op.Y, op.W, op.H, "D")
	pdf.SetFont(documentFont, "I", 10)
	pdf.SetXY(op.X, op.Y+op.H/2-3)
	pdf.CellFormat(op.W, 6, tr("Image unavailable: "+m.FileName), "", 0, "C", false, 0, "")
	pdf.SetDrawColor(0, 0, 0)
}

func imageType(format string) string {
	if format == "jpeg" {
		return "JPG"
	}
	return "PNG"
}

// CountPages validates a PDF and returns its page count.
func CountPages(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("generated document failed validation: %w", err)
	}
	return ctx.PageCount, nil
}
