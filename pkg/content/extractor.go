// Package content turns feed entry HTML into the markdown text and image
// list used for notifications. Entries expose two HTML fields, a short
// summary and a rich content body, and the two are picked with opposite
// priorities: text prefers the summary, images prefer the content body.
package content

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/feedhook/pkg/domain"
)

// Extractor converts entry HTML to markdown and collects embedded images.
// Safe to reuse across feeds, holds no per-entry state.
type Extractor struct {
	conv   *md.Converter
	policy *bluemonday.Policy
}

// NewExtractor creates an extractor with a fixed rendering policy: ATX
// headings, "*" bullets, img tags stripped from the text since images are
// surfaced separately.
func NewExtractor() *Extractor {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "*",
	})
	conv.Remove("img")

	// feeds link relative to their own site all the time
	policy := bluemonday.UGCPolicy()
	policy.AllowRelativeURLs(true)

	return &Extractor{conv: conv, policy: policy}
}

// Extract returns the markdown text and the image URLs for a feed entry.
// Text comes from the summary HTML when present, the content body
// otherwise. Images come from the content body when present, the summary
// otherwise, in document order and resolved against the entry link.
// Malformed HTML degrades to partial or empty output, never an error.
func (e *Extractor) Extract(item domain.ParsedItem) (text string, images []string) {
	textHTML := item.Description
	if textHTML == "" {
		textHTML = item.Content
	}

	imgHTML := item.Content
	if imgHTML == "" {
		imgHTML = item.Description
	}

	return e.Markdown(textHTML), e.images(imgHTML, item.Link)
}

// Markdown converts an HTML fragment to markdown. The input is sanitized
// first, so scripts and styles from untrusted feeds never leak into the
// output. Returns an empty string when nothing can be converted.
func (e *Extractor) Markdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	res, err := e.conv.ConvertString(e.policy.Sanitize(html))
	if err != nil {
		lgr.Printf("[WARN] can't convert html to markdown: %v", err)
		return ""
	}
	res = strings.ReplaceAll(res, "\t", "  ")
	return strings.TrimSpace(res)
}

// images collects img src attributes from the HTML in document order,
// resolved to absolute URLs against the entry link
func (e *Extractor) images(html, entryLink string) []string {
	if html == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		lgr.Printf("[WARN] can't parse entry html: %v", err)
		return nil
	}

	base, err := url.Parse(entryLink)
	if err != nil {
		base = nil
	}

	var res []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		res = append(res, resolveURL(base, src))
	})
	return res
}

// resolveURL makes src absolute against base, returns src as is when it
// can't be resolved
func resolveURL(base *url.URL, src string) string {
	if base == nil {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
