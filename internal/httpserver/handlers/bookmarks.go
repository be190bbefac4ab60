package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/form"
	"github.com/MrSnakeDoc/marky/internal/httpserver/deps"
	"github.com/MrSnakeDoc/marky/internal/importer"
	"github.com/MrSnakeDoc/marky/internal/logger"
	"github.com/MrSnakeDoc/marky/internal/search"
)

const (
	defaultSuggestLimit = 10
	defaultImportBytes  = 10 << 20
)

type listResponse struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Query     string            `json:"query,omitempty"`
	ActiveTag string            `json:"active_tag,omitempty"`
	// Count is only reported when a text query was applied.
	Count *int `json:"count,omitempty"`
	Total int  `json:"total"`
	// LoadedAt is when the cached view was last reconciled.
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

func newListResponse(res search.Result, q search.Query) listResponse {
	resp := listResponse{
		Bookmarks: res.Bookmarks,
		ActiveTag: q.ActiveTag,
		Total:     len(res.Bookmarks),
	}
	if res.Applied {
		count := res.Count
		resp.Query = res.Query
		resp.Count = &count
	}
	return resp
}

// ListBookmarks returns the filtered view: ?q= free text, ?tag= exact tag.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := search.Query{
			Text:      r.URL.Query().Get("q"),
			ActiveTag: r.URL.Query().Get("tag"),
		}
		serveView(w, r, d, q)
	}
}

// TagClick is the shortcut behind a tag badge. The tag becomes the text
// query, so it also matches titles and descriptions containing it.
func TagClick(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// chi hands back the escaped segment when the path has one
		tag, err := url.PathUnescape(chi.URLParam(r, "tag"))
		if err != nil {
			badRequest(w, fmt.Errorf("invalid tag: %w", err))
			return
		}
		serveView(w, r, d, search.FromTagClick(tag))
	}
}

func serveView(w http.ResponseWriter, r *http.Request, d deps.Deps, q search.Query) {
	sess := sessionOf(r)
	res, err := d.Bookmarks.View(r.Context(), sess, q)
	if err != nil {
		writeError(w, r, d, err)
		return
	}

	resp := newListResponse(res, q)
	if at, ok := d.Bookmarks.Index().LoadedAt(sess.UserID); ok {
		resp.LoadedAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

// editResponse is a bookmark plus the tags as the edit form's single
// comma separated input.
type editResponse struct {
	domain.Bookmark
	TagsInput string `json:"tags_input"`
}

// GetBookmark returns one bookmark, for prefilling the edit form.
func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := d.Bookmarks.Get(r.Context(), sessionOf(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, editResponse{Bookmark: b, TagsInput: form.JoinTags(b.Tags)})
	}
}

// CreateBookmark saves the add form.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, ok := readBookmarkForm(w, r, d)
		if !ok {
			return
		}

		b, err := d.Bookmarks.Create(r.Context(), sessionOf(r), fields)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		d.Logger.Info("bookmark created",
			logger.String("id", b.ID),
			logger.String("url", b.URL))
		w.Header().Set("Location", "/api/bookmarks/"+b.ID)
		writeJSON(w, http.StatusCreated, b)
	}
}

// UpdateBookmark saves the edit form.
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, ok := readBookmarkForm(w, r, d)
		if !ok {
			return
		}

		b, err := d.Bookmarks.Update(r.Context(), sessionOf(r), chi.URLParam(r, "id"), fields)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// DeleteBookmark removes one bookmark.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.Bookmarks.Delete(r.Context(), sessionOf(r), id); err != nil {
			writeError(w, r, d, err)
			return
		}
		d.Logger.Info("bookmark deleted", logger.String("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

// readBookmarkForm decodes and validates the add/edit form. Nothing
// reaches the store when it fails.
func readBookmarkForm(w http.ResponseWriter, r *http.Request, d deps.Deps) (domain.Fields, bool) {
	var in form.BookmarkInput
	if err := decodeJSON(w, r, &in); err != nil {
		badRequest(w, err)
		return domain.Fields{}, false
	}
	fields, err := in.Bookmark()
	if err != nil {
		writeError(w, r, d, err)
		return domain.Fields{}, false
	}
	return fields, true
}

// Tags lists distinct tags, or fuzzy suggestions when ?prefix= is set.
func Tags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			tags []search.TagCount
			err  error
		)

		prefix := strings.TrimSpace(r.URL.Query().Get("prefix"))
		if prefix == "" {
			tags, err = d.Bookmarks.Tags(r.Context(), sessionOf(r))
		} else {
			limit := defaultSuggestLimit
			if v, convErr := strconv.Atoi(r.URL.Query().Get("limit")); convErr == nil && v > 0 {
				limit = v
			}
			tags, err = d.Bookmarks.SuggestTags(r.Context(), sessionOf(r), prefix, limit)
		}
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if tags == nil {
			tags = []search.TagCount{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
	}
}

// ImportBookmarks accepts a YAML list, a Homepage bookmarks.yaml or a
// browser HTML export as the raw request body.
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	limit := d.MaxImportBytes
	if limit <= 0 {
		limit = defaultImportBytes
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "import file too large"})
				return
			}
			badRequest(w, fmt.Errorf("failed to read import: %w", err))
			return
		}
		if len(bytes.TrimSpace(data)) == 0 {
			badRequest(w, errors.New("empty import"))
			return
		}

		entries, err := importer.Parse(importName(r), data)
		if err != nil {
			badRequest(w, err)
			return
		}

		res, err := d.Bookmarks.Import(r.Context(), sessionOf(r), entries)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		d.Logger.Info("bookmarks imported",
			logger.Int("imported", res.Imported),
			logger.Int("skipped", res.Skipped))
		writeJSON(w, http.StatusOK, res)
	}
}

// importName turns ?filename= or the content type into a name the
// importer can detect the format from.
func importName(r *http.Request) string {
	if name := r.URL.Query().Get("filename"); name != "" {
		return name
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/html":
		return "import.html"
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return "import.yaml"
	}
	return ""
}

// ExportBookmarks downloads the owner's collection as browser HTML.
func ExportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookmarks, err := d.Bookmarks.Collection(r.Context(), sessionOf(r))
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		var buf bytes.Buffer
		if err := importer.ExportHTML(&buf, bookmarks); err != nil {
			writeError(w, r, d, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="marky-bookmarks.html"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(buf.Bytes()); err != nil {
			d.Logger.Debug("failed to write export", logger.Error(err))
		}
	}
}

// BookmarksSocket opens the realtime channel for the session owner.
func BookmarksSocket(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Hub.Serve(w, r, sessionOf(r)); err != nil {
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
		}
	}
}
