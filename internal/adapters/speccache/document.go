package speccache

// Package speccache fetches, parses, and caches the OpenAPI documents that
// describe each registered logic module's HTTP surface. The swagger client
// resolves operations against the cached document instead of re-fetching the
// spec on every gateway request.

import (
	"strings"
	"time"

	"github.com/erraggy/oastools/parser"
)

// Document is a parsed OpenAPI 2/3 spec for one logic module, indexed for
// (path, method) operation lookup.
type Document struct {
	EndpointName string
	Version      string
	BasePath     string
	FetchedAt    time.Time

	paths parser.Paths
}

// Operation resolves an operation by path and method. Path matching is
// tolerant of a missing or extra trailing slash, since backend frameworks
// disagree about which form their spec advertises.
func (d *Document) Operation(path, method string) (*parser.Operation, bool) {
	item, ok := d.pathItem(path)
	if !ok {
		return nil, false
	}

	var op *parser.Operation
	switch strings.ToUpper(method) {
	case "GET":
		op = item.Get
	case "POST":
		op = item.Post
	case "PUT":
		op = item.Put
	case "PATCH":
		op = item.Patch
	case "DELETE":
		op = item.Delete
	case "HEAD":
		op = item.Head
	case "OPTIONS":
		op = item.Options
	}
	if op == nil {
		return nil, false
	}
	return op, true
}

// HasPath reports whether the document declares any operation under path.
func (d *Document) HasPath(path string) bool {
	_, ok := d.pathItem(path)
	return ok
}

func (d *Document) pathItem(path string) (*parser.PathItem, bool) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if item, ok := d.paths[path]; ok {
		return item, true
	}
	if strings.HasSuffix(path, "/") {
		if item, ok := d.paths[strings.TrimSuffix(path, "/")]; ok {
			return item, true
		}
	} else if item, ok := d.paths[path+"/"]; ok {
		return item, true
	}

	// Concrete paths ("/product/u1/") resolve against templated spec paths
	// ("/product/{id}/"): segments must agree in count, and each spec
	// segment either matches literally or is a {parameter}.
	want := splitSegments(path)
	for declared, item := range d.paths {
		if matchTemplate(splitSegments(declared), want) {
			return item, true
		}
	}
	return nil, false
}

func splitSegments(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

func matchTemplate(declared, concrete []string) bool {
	if len(declared) != len(concrete) {
		return false
	}
	for i, seg := range declared {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			continue
		}
		if seg != concrete[i] {
			return false
		}
	}
	return true
}

// newDocument indexes a ParseResult into a Document. The version-specific
// document types share the Paths representation, so the switch only needs to
// pull out the paths map and the OAS2 base path.
func newDocument(endpointName string, res *parser.ParseResult, fetchedAt time.Time) *Document {
	doc := &Document{
		EndpointName: endpointName,
		Version:      res.Version,
		FetchedAt:    fetchedAt,
	}
	switch d := res.Document.(type) {
	case *parser.OAS2Document:
		doc.paths = d.Paths
		doc.BasePath = d.BasePath
	case *parser.OAS3Document:
		doc.paths = d.Paths
	}
	return doc
}
