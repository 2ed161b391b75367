// Package htmlutil reads text and links out of parsed portal pages.
package htmlutil

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("suapreport/lib/htmlutil")

// Text concatenates every text node below node, markup is dropped.
func Text(node *html.Node) string {
	var b strings.Builder
	collectText(node, &b)
	return b.String()
}

func collectText(node *html.Node, b *strings.Builder) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		b.WriteString(node.Data)
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, b)
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText reads s the way a rendered cell reads: non-breaking spaces
// become spaces, invisible runes are dropped and whitespace runs collapse to
// a single space.
func CleanText(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.ReplaceAll(s, "\u00a0", " "), " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

// SelectionText returns the cleaned text of every node in sel.
func SelectionText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(n, &b)
	}
	return CleanText(b.String())
}

// ResolveURL resolves href against base, returning href unchanged if either
// fails to parse.
func ResolveURL(base, href string) string {
	if base == "" || href == "" {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

type Anchor struct {
	Text string
	Href string
}

// Anchors lists the links in sel with their href resolved against base.
// Elements without an href are skipped.
func Anchors(ctx context.Context, sel *goquery.Selection, base string) []Anchor {
	_, span := tracer.Start(ctx, "Anchors")
	defer span.End()

	anchors := []Anchor{}
	sel.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		if _, err := url.Parse(href); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unreadable href")
			return
		}

		anchor := Anchor{
			Text: SelectionText(a),
			Href: ResolveURL(base, href),
		}
		anchors = append(anchors, anchor)
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("text", anchor.Text),
			attribute.String("url", anchor.Href),
		))
	})
	return anchors
}
