// Package ingest turns file paths and page URLs into knowledge documents.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	kmodels "github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"github.com/mohammad-safakhou/ragrouter/tools/attachments"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch"
	"go.uber.org/zap"
)

// Parser reads local files.
type Parser interface {
	Parse(ctx context.Context, refs []string) ([]attachments.Attachment, error)
}

// IsURL reports whether ref is fetched rather than read from disk.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// FileURL is the document URL recorded for a local path.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}

// Collect turns refs into documents. URLs go through the page fetcher;
// everything else is read as a local file. Unreadable, empty or binary
// inputs are returned as skipped. Images count only when a description
// was produced for them.
func Collect(ctx context.Context, refs []string, parser Parser, fetcher web_fetch.WebFetcher, logger *zap.Logger) ([]kmodels.DocInput, []string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		docs    []kmodels.DocInput
		skipped []string
		files   []string
	)
	for _, ref := range refs {
		if !IsURL(ref) {
			files = append(files, ref)
			continue
		}
		if fetcher == nil {
			skipped = append(skipped, ref)
			continue
		}
		page, err := fetcher.Exec(ctx, ref)
		if err != nil || strings.TrimSpace(page.Text) == "" {
			logger.Warn("fetch failed", zap.String("url", ref), zap.Error(err))
			skipped = append(skipped, ref)
			continue
		}
		title := page.Title
		if title == "" {
			title = ref
		}
		docs = append(docs, kmodels.DocInput{URL: ref, Title: title, Text: page.Text})
	}
	if len(files) == 0 {
		return docs, skipped
	}
	if parser == nil {
		return docs, append(skipped, files...)
	}

	atts, err := parser.Parse(ctx, files)
	if err != nil {
		return docs, append(skipped, files...)
	}
	for _, att := range atts {
		switch att.Type {
		case attachments.TypeText, attachments.TypeHTML, attachments.TypeImage:
		default:
			skipped = append(skipped, att.Path)
			continue
		}
		if strings.TrimSpace(att.Content) == "" {
			skipped = append(skipped, att.Path)
			continue
		}
		title := att.Filename
		if t, ok := att.Metadata["title"].(string); ok && t != "" {
			title = t
		}
		docs = append(docs, kmodels.DocInput{
			URL:   FileURL(att.Path),
			Title: title,
			Text:  att.Content,
		})
	}
	return docs, skipped
}
