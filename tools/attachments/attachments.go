package attachments

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch/readable"
)

type Type string

const (
	TypeText        Type = "text"
	TypeHTML        Type = "html"
	TypeImage       Type = "image"
	TypeUnsupported Type = "unsupported"
	TypeUnreadable  Type = "unreadable"
)

// Attachment is one parsed file reference. Content is what gets placed in
// the prompt; binary types keep only metadata.
type Attachment struct {
	Filename      string         `json:"filename"`
	Path          string         `json:"path"`
	Type          Type           `json:"type"`
	Size          int64          `json:"size"`
	TokenEstimate int            `json:"token_estimate"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Content       string         `json:"-"`
}

var textExt = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true, ".tsv": true, ".json": true,
	".yaml": true, ".yml": true, ".xml": true, ".log": true, ".ini": true, ".toml": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".sql": true, ".sh": true,
}

var htmlExt = map[string]bool{".html": true, ".htm": true, ".xhtml": true}

var imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true}

// ImageDescriber turns image bytes into a text description.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

// Parser reads local file references.
type Parser struct {
	// MaxChars truncates each file's prompt content; 0 means no limit.
	MaxChars int
	// Describer, when set, fills Content for images. Failures leave the
	// image as metadata only.
	Describer ImageDescriber
	// Prompt is sent with each image; empty uses the describer's default.
	Prompt string
	// MaxImageBytes skips description for larger images; 0 means no limit.
	MaxImageBytes int64
}

func NewParser(maxChars int) *Parser {
	return &Parser{MaxChars: maxChars}
}

// WithDescriber returns a copy of p that describes images with d.
func (p *Parser) WithDescriber(d ImageDescriber, prompt string, maxBytes int64) *Parser {
	cp := *p
	cp.Describer = d
	cp.Prompt = prompt
	cp.MaxImageBytes = maxBytes
	return &cp
}

// Parse reads every ref in order. A file that cannot be read is returned
// with TypeUnreadable and the error in its metadata rather than failing the
// whole batch; only context cancellation is an error.
func (p *Parser) Parse(ctx context.Context, refs []string) ([]Attachment, error) {
	out := make([]Attachment, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, p.parseOne(ctx, ref))
	}
	return out, nil
}

func (p *Parser) parseOne(ctx context.Context, ref string) Attachment {
	a := Attachment{Filename: filepath.Base(ref), Path: ref, Metadata: map[string]any{}}
	info, err := os.Stat(ref)
	if err != nil {
		a.Type = TypeUnreadable
		a.Metadata["error"] = err.Error()
		return a
	}
	if info.IsDir() {
		a.Type = TypeUnreadable
		a.Metadata["error"] = "is a directory"
		return a
	}
	a.Size = info.Size()
	ext := strings.ToLower(filepath.Ext(ref))
	a.Metadata["extension"] = ext

	if imageExt[ext] {
		a.Type = TypeImage
		if f, err := os.Open(ref); err == nil {
			if cfg, format, err := image.DecodeConfig(f); err == nil {
				a.Metadata["width"] = cfg.Width
				a.Metadata["height"] = cfg.Height
				a.Metadata["format"] = format
			}
			_ = f.Close()
		}
		p.describe(ctx, &a)
		return a
	}

	raw, err := os.ReadFile(ref)
	if err != nil {
		a.Type = TypeUnreadable
		a.Metadata["error"] = err.Error()
		return a
	}
	switch {
	case htmlExt[ext]:
		a.Type = TypeHTML
		page := readable.Extract("file://"+ref, string(raw), 0)
		if page.Title != "" {
			a.Metadata["title"] = page.Title
		}
		a.Content = page.Text
	case textExt[ext] || isText(raw):
		a.Type = TypeText
		a.Content = strings.ToValidUTF8(string(raw), "")
		a.Metadata["lines"] = strings.Count(a.Content, "\n") + 1
	default:
		a.Type = TypeUnsupported
		a.Metadata["mime"] = http.DetectContentType(raw)
		return a
	}
	a.Content = strings.TrimSpace(a.Content)
	if p.MaxChars > 0 && utf8.RuneCountInString(a.Content) > p.MaxChars {
		a.Content = string([]rune(a.Content)[:p.MaxChars])
		a.Metadata["truncated"] = true
	}
	a.TokenEstimate = EstimateTokens(a.Content)
	return a
}

func (p *Parser) describe(ctx context.Context, a *Attachment) {
	if p.Describer == nil || (p.MaxImageBytes > 0 && a.Size > p.MaxImageBytes) {
		return
	}
	raw, err := os.ReadFile(a.Path)
	if err != nil {
		return
	}
	desc, err := p.Describer.DescribeImage(ctx, raw, http.DetectContentType(raw), p.Prompt)
	if err != nil || strings.TrimSpace(desc) == "" {
		return
	}
	a.Content = strings.TrimSpace(desc)
	if p.MaxChars > 0 && utf8.RuneCountInString(a.Content) > p.MaxChars {
		a.Content = string([]rune(a.Content)[:p.MaxChars])
		a.Metadata["truncated"] = true
	}
	a.Metadata["described"] = true
	a.TokenEstimate = EstimateTokens(a.Content)
}

func isText(raw []byte) bool {
	return strings.HasPrefix(http.DetectContentType(raw), "text/plain")
}

// EstimateTokens approximates the model token count: CJK characters count
// one each, everything else four characters per token.
func EstimateTokens(s string) int {
	var cjk, other int
	for _, r := range s {
		if (r >= 0x2E80 && r <= 0x9FFF) || (r >= 0xF900 && r <= 0xFAFF) {
			cjk++
		} else {
			other++
		}
	}
	return cjk + (other+3)/4
}

// Render turns attachments into prompt text, one labelled block per file.
func Render(atts []Attachment) string {
	var b strings.Builder
	for i, a := range atts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== Attachment %d: %s (%s) ===\n", i+1, a.Filename, a.Type)
		switch a.Type {
		case TypeText, TypeHTML:
			if title, ok := a.Metadata["title"].(string); ok {
				fmt.Fprintf(&b, "Title: %s\n", title)
			}
			if a.Content == "" {
				b.WriteString("(empty file)")
			} else {
				b.WriteString(a.Content)
			}
		case TypeImage:
			b.WriteString("Image file")
			if w, ok := a.Metadata["width"].(int); ok {
				fmt.Fprintf(&b, ", %dx%d pixels", w, a.Metadata["height"])
			}
			if a.Content != "" {
				fmt.Fprintf(&b, ". Description: %s", a.Content)
			} else {
				b.WriteString(". Image content is not available as text.")
			}
		case TypeUnreadable:
			fmt.Fprintf(&b, "File could not be read: %v", a.Metadata["error"])
		default:
			fmt.Fprintf(&b, "Unsupported file type (%v); content not extracted.", a.Metadata["mime"])
		}
	}
	return b.String()
}
