// Package caption derives captions and alt text for gallery images.
package caption

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxCaptionLength is the longest caption the template produces.
const MaxCaptionLength = 60

// Context is the project information a caption may refer to.
type Context struct {
	Idea    string
	Subject string
}

// Result is a generated caption and alt text.
type Result struct {
	Caption string `json:"caption"`
	AltText string `json:"altText"`
}

// Generator produces a caption for an uploaded image. Implementations backed
// by a text-generation service must keep the same input and output.
type Generator interface {
	Generate(ctx context.Context, fileName string, c Context) (Result, error)
}

// TemplateGenerator derives captions from the file name and subject only.
type TemplateGenerator struct{}

var separators = regexp.MustCompile(`[-_.\s]+`)

// Generate implements Generator. It is deterministic.
func (TemplateGenerator) Generate(ctx context.Context, fileName string, c Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	base := BaseTitle(fileName)
	subject := strings.TrimSpace(c.Subject)

	return Result{
		Caption: buildCaption(base, subject),
		AltText: buildAltText(base, subject, c.Idea),
	}, nil
}

// BaseTitle turns a file name into Title Case words: "lab-results_v2.png"
// becomes "Lab Results V2".
func BaseTitle(fileName string) string {
	name := filepath.Base(fileName)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSpace(separators.ReplaceAllString(name, " "))
	if name == "" {
		return "Image"
	}

	words := strings.Fields(name)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func buildCaption(base, subject string) string {
	if subject == "" {
		return truncate(base, MaxCaptionLength)
	}

	caption := fmt.Sprintf("%s - %s research figure", base, subject)
	if utf8.RuneCountInString(caption) <= MaxCaptionLength {
		return caption
	}

	caption = fmt.Sprintf("%s (%s)", base, subject)
	return truncate(caption, MaxCaptionLength)
}

func buildAltText(base, subject, idea string) string {
	alt := "Image showing " + strings.ToLower(base)
	if subject != "" {
		alt += fmt.Sprintf(" for a %s project", subject)
	}
	if idea = strings.TrimSpace(idea); idea != "" {
		alt += ": " + truncate(idea, 80)
	}
	return alt
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}
