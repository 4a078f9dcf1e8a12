// Package storagepath converts between canonical object keys and the URL
// shapes image references have been stored under over time.
//
// A canonical path is bucket-relative, e.g. "<ownerId>/<epochMillis>.jpg".
// Three shapes are recognized:
//
//	Bare    <ownerId>/1700000000000.jpg
//	Public  https://host/storage/v1/object/public/<bucket>/<path>
//	Signed  https://host/storage/v1/object/sign/<bucket>/<path>?token=...
//
// When the bucket is known, S3 path-style URLs (https://host/<bucket>/<path>,
// signed with X-Amz-Signature) are recognized as Public and Signed as well.
package storagepath

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Kind tags the shape a reference was found in.
type Kind int

// Reference shapes.
const (
	Bare Kind = iota
	Public
	Signed
)

func (k Kind) String() string {
	switch k {
	case Public:
		return "public"
	case Signed:
		return "signed"
	default:
		return "bare"
	}
}

const (
	publicMarker = "/object/public/"
	signMarker   = "/object/sign/"
)

// Ref is a parsed image reference.
type Ref struct {
	Kind   Kind
	Bucket string
	Path   string
	Query  string
}

// Parser parses references for one bucket. The zero value accepts any
// bucket in the /object/ shapes and does not recognize S3 path-style URLs.
type Parser struct {
	Bucket string
}

// Parse classifies raw and extracts its canonical path. Input that carries
// no URL markers is returned as a Bare reference unchanged.
func (p Parser) Parse(raw string) Ref {
	if ref, ok := parseObjectURL(raw, signMarker, Signed); ok {
		return ref
	}
	if ref, ok := parseObjectURL(raw, publicMarker, Public); ok {
		return ref
	}
	if p.Bucket != "" {
		if ref, ok := p.parsePathStyle(raw); ok {
			return ref
		}
	}
	return Ref{Kind: Bare, Path: raw}
}

// Canonical returns the canonical path of raw.
func (p Parser) Canonical(raw string) string {
	return p.Parse(raw).Path
}

// Canonical returns the canonical path of raw using the zero Parser.
func Canonical(raw string) string {
	return Parser{}.Canonical(raw)
}

// parseObjectURL handles ".../object/{public|sign}/<bucket>/<path>[?query]".
func parseObjectURL(raw, marker string, kind Kind) (Ref, bool) {
	i := strings.Index(raw, marker)
	if i < 0 {
		return Ref{}, false
	}
	rest := raw[i+len(marker):]

	var query string
	if q := strings.IndexByte(rest, '?'); q >= 0 {
		rest, query = rest[:q], rest[q+1:]
	}
	if kind == Public {
		// public URLs carry no meaningful query; cache busters are dropped
		query = ""
	}

	bucket, path, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || path == "" {
		return Ref{}, false
	}
	return Ref{Kind: kind, Bucket: bucket, Path: unescape(path), Query: query}, true
}

// parsePathStyle handles "<scheme>://host/<bucket>/<path>[?X-Amz-...]".
func (p Parser) parsePathStyle(raw string) (Ref, bool) {
	if !strings.Contains(raw, "://") {
		return Ref{}, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Ref{}, false
	}

	prefix := "/" + p.Bucket + "/"
	escaped := u.EscapedPath()
	if !strings.HasPrefix(escaped, prefix) {
		return Ref{}, false
	}
	path := unescape(strings.TrimPrefix(escaped, prefix))
	if path == "" {
		return Ref{}, false
	}

	ref := Ref{Kind: Public, Bucket: p.Bucket, Path: path}
	if u.Query().Get("X-Amz-Signature") != "" {
		ref.Kind = Signed
		ref.Query = u.RawQuery
	}
	return ref, true
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// NewKey builds the storage key for an upload made by ownerID at t.
func NewKey(ownerID string, t time.Time, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return fmt.Sprintf("%s/%d.%s", ownerID, t.UnixMilli(), ext)
}

// Owner returns the owner prefix of a canonical path, or "" if it has none.
func Owner(path string) string {
	owner, _, ok := strings.Cut(path, "/")
	if !ok {
		return ""
	}
	return owner
}

// Escape escapes each segment of a canonical path for use in a URL.
func Escape(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
