// Package publisher turns a finished article into its exported forms: the Markdown
// document, a download filename, an HTML preview, and an optional archived copy.
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const fallbackFilename = "article.md"

// ErrNoArchive is returned by the read side when no archive is configured.
var ErrNoArchive = errors.New("archive not configured")

var (
	// 只保留字母、组合符号、数字、下划线和空白；日文标题需要 Unicode 类别而不是 \w。
	unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)
	whitespaceRun       = regexp.MustCompile(`\s+`)

	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
)

// Document composes the exported Markdown: an H1 title, a blank line, then the body.
func Document(title, body string) string {
	return "# " + title + "\n\n" + body
}

// Filename derives a download name from the title.
func Filename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(title, "")
	name = strings.TrimSpace(name)
	name = whitespaceRun.ReplaceAllString(name, "_")
	if name == "" {
		return fallbackFilename
	}
	return name + ".md"
}

// RenderHTML converts Markdown to HTML for the browser preview.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Publisher composes completed articles and hands them to an Archive.
type Publisher struct {
	archive Archive
	verbose bool
	logger  *log.Logger
}

// New creates a Publisher. A nil archive makes Publish compose only.
func New(archive Archive, verbose bool, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{archive: archive, verbose: verbose, logger: logger}
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Publish composes the document and archives it under id/Filename(title).
// It returns the object key, or "" when no archive is configured.
func (p *Publisher) Publish(ctx context.Context, id, title, body string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("publish id is required")
	}
	if strings.TrimSpace(title) == "" {
		return "", errors.New("publish title is required")
	}
	doc := Document(title, body)
	if p.archive == nil {
		p.infof("No archive configured, skipped %s", id)
		return "", nil
	}
	key := objectKey(id, Filename(title))
	if err := p.archive.Put(ctx, key, []byte(doc)); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	p.infof("Archived article %s (%d bytes)", key, len(doc))
	return key, nil
}

// Archived lists the file names archived for id, in lexical order.
func (p *Publisher) Archived(ctx context.Context, id string) ([]string, error) {
	if p.archive == nil {
		return nil, ErrNoArchive
	}
	prefix := objectKey(id, "")
	keys, err := p.archive.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, prefix))
	}
	return names, nil
}

// ArchivedDocument reads one archived document. Names containing a path separator are
// never found.
func (p *Publisher) ArchivedDocument(ctx context.Context, id, name string) ([]byte, error) {
	if p.archive == nil {
		return nil, ErrNoArchive
	}
	if name == "" || strings.Contains(name, "/") {
		return nil, ErrNotFound
	}
	return p.archive.Get(ctx, objectKey(id, name))
}

func objectKey(id, name string) string {
	return strings.TrimSpace(id) + "/" + strings.TrimLeft(name, "/")
}
