package importer

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MrSnakeDoc/marky/internal/domain"
)

// ParseNetscape reads a browser bookmark export (NETSCAPE-Bookmark-file-1).
// The TAGS attribute is kept as written; enclosing folder names it does
// not already carry are prepended.
func ParseNetscape(r io.Reader) ([]domain.Fields, error) {
	z := html.NewTokenizer(r)

	var (
		out     = make([]domain.Fields, 0)
		folders []string // one entry per open <DL>, "" when unnamed
		pending string   // last <H3> text, waiting for its <DL>
		inTitle bool
		inH3    bool
		inDesc  bool
		cur     *domain.Fields
		text    strings.Builder
	)

	flushDesc := func() {
		if inDesc && len(out) > 0 {
			out[len(out)-1].Description = strings.TrimSpace(text.String())
		}
		inDesc = false
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("failed to read bookmark html: %w", err)
			}
			flushDesc()
			return out, nil

		case html.TextToken:
			if inTitle || inH3 || inDesc {
				text.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			a := atom.Lookup(name)
			if a != atom.Dd {
				flushDesc()
			}

			switch a {
			case atom.Dl:
				folders = append(folders, pending)
				pending = ""
			case atom.H3:
				inH3 = true
				text.Reset()
			case atom.A:
				var (
					f   domain.Fields
					own []string
				)
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					switch string(key) {
					case "href":
						f.URL = strings.TrimSpace(string(val))
					case "tags":
						own = splitTags(string(val))
					case "favorite":
						f.Favorite = string(val) == "1" || strings.EqualFold(string(val), "true")
					}
				}
				f.Tags = withFolders(folders, own)
				cur = &f
				inTitle = true
				text.Reset()
			case atom.Dd:
				inDesc = true
				text.Reset()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Dl:
				flushDesc()
				if len(folders) > 0 {
					folders = folders[:len(folders)-1]
				}
			case atom.H3:
				pending = strings.TrimSpace(text.String())
				inH3 = false
			case atom.A:
				if cur != nil {
					cur.Title = strings.TrimSpace(text.String())
					if cur.URL != "" {
						out = append(out, *cur)
					}
				}
				cur = nil
				inTitle = false
			}
		}
	}
}

func withFolders(folders, own []string) []string {
	tags := make([]string, 0, len(folders)+len(own))
	for _, f := range folders {
		if f != "" && !slices.Contains(tags, f) && !slices.Contains(own, f) {
			tags = append(tags, f)
		}
	}
	return append(tags, own...)
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// ExportHTML writes bookmarks as a NETSCAPE-Bookmark-file-1 document
// that browsers and ParseNetscape can read back.
func ExportHTML(w io.Writer, bookmarks []domain.Bookmark) error {
	var buf bytes.Buffer

	buf.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	buf.WriteString(`<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">` + "\n")
	buf.WriteString("<TITLE>Bookmarks</TITLE>\n<H1>Bookmarks</H1>\n<DL><p>\n")

	for _, b := range bookmarks {
		buf.WriteString(`    <DT><A HREF="`)
		buf.WriteString(html.EscapeString(b.URL))
		buf.WriteString(`"`)
		writeDate(&buf, "ADD_DATE", b.CreatedAt)
		writeDate(&buf, "LAST_MODIFIED", b.UpdatedAt)
		if len(b.Tags) > 0 {
			buf.WriteString(` TAGS="`)
			buf.WriteString(html.EscapeString(strings.Join(b.Tags, ",")))
			buf.WriteString(`"`)
		}
		if b.Favorite {
			buf.WriteString(` FAVORITE="1"`)
		}
		buf.WriteString(">")
		buf.WriteString(html.EscapeString(b.Title))
		buf.WriteString("</A>\n")
		if b.Description != "" {
			buf.WriteString("    <DD>")
			buf.WriteString(html.EscapeString(b.Description))
			buf.WriteString("\n")
		}
	}
	buf.WriteString("</DL><p>\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write bookmark html: %w", err)
	}
	return nil
}

func writeDate(buf *bytes.Buffer, attr string, t time.Time) {
	if t.IsZero() {
		return
	}
	buf.WriteString(" " + attr + `="`)
	buf.WriteString(strconv.FormatInt(t.Unix(), 10))
	buf.WriteString(`"`)
}
