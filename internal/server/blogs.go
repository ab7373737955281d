// blogs.go - Blog post CRUD.
//
// Create and update accept either plain JSON or a multipart form whose
// "media" files are pushed through the media store before the document is
// written; only the resulting URLs are persisted.
package server

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const maxBlogMediaFiles = 5

// blogInput is the JSON shape for create/update. Pointer fields let
// updates distinguish "absent" from "set to zero value".
type blogInput struct {
	Title     *string   `json:"title"`
	Body      *string   `json:"body"`
	Published *bool     `json:"published"`
	Media     *[]string `json:"media"`
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// blogInputFromForm maps multipart form values onto the JSON input shape.
func blogInputFromForm(values url.Values) blogInput {
	var in blogInput
	if v := values.Get("title"); v != "" {
		in.Title = &v
	}
	if v := values.Get("body"); v != "" {
		in.Body = &v
	}
	if v := values.Get("published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			in.Published = &b
		}
	}
	return in
}

// uploadBlogMedia sends every buffered file through the media store and
// returns the public URLs in input order.
func (s *Server) uploadBlogMedia(r *http.Request, files []uploadedFile) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		u, err := s.uploadFile(r.Context(), f, blogFolderFor(f))
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// readBlogInput decodes the request into input + uploaded media URLs,
// handling both content types.
func (s *Server) readBlogInput(w http.ResponseWriter, r *http.Request) (blogInput, []string, bool) {
	if !isMultipart(r) {
		var in blogInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return blogInput{}, nil, false
		}
		return in, nil, true
	}

	files, values, err := readMultipartMedia(r, maxBlogMediaFiles)
	if err != nil {
		writeMultipartError(w, r, err)
		return blogInput{}, nil, false
	}
	urls, err := s.uploadBlogMedia(r, files)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=blog_media_upload err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
		return blogInput{}, nil, false
	}
	return blogInputFromForm(values), urls, true
}

// writeMultipartError maps multipart failures: body over the ceiling is
// 413, a disallowed file type or malformed body is 400.
func writeMultipartError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if errors.Is(err, errTooManyFiles) {
		writeError(w, http.StatusBadRequest, "Too many files")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// listBlogsHandler handles GET /api/blogs. Anonymous and non-admin callers
// see published posts only.
func (s *Server) listBlogsHandler(w http.ResponseWriter, r *http.Request) {
	publishedOnly := true
	if tok := bearerToken(r); tok != "" {
		if payload, err := s.auth.verifyToken(tok); err == nil {
			if u, err := s.store.UserByID(r.Context(), payload.Sub); err == nil && u.IsAdmin {
				publishedOnly = false
			}
		}
	}

	posts, err := s.store.ListPosts(r.Context(), publishedOnly)
	if err != nil {
		writeStoreError(w, r, "blog_list", err)
		return
	}
	if posts == nil {
		posts = []BlogPost{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// getBlogHandler handles GET /api/blogs/{id}.
func (s *Server) getBlogHandler(w http.ResponseWriter, r *http.Request) {
	post, err := s.store.PostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, "blog_get", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// createBlogHandler handles POST /api/blogs (authenticated).
func (s *Server) createBlogHandler(w http.ResponseWriter, r *http.Request) {
	actor := userFromContext(r.Context())

	in, mediaURLs, ok := s.readBlogInput(w, r)
	if !ok {
		return
	}

	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	post := &BlogPost{
		Title:    strings.TrimSpace(*in.Title),
		AuthorID: actor.ID,
		Media:    mediaURLs,
	}
	if in.Body != nil {
		post.Body = *in.Body
	}
	if in.Published != nil {
		post.Published = *in.Published
	}
	if in.Media != nil {
		post.Media = append(*in.Media, mediaURLs...)
	}

	if err := s.store.CreatePost(r.Context(), post); err != nil {
		writeStoreError(w, r, "blog_insert", err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// canModifyPost allows the author and admins.
func canModifyPost(actor *User, post *BlogPost) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin || actor.ID == post.AuthorID
}

// updateBlogHandler handles PUT /api/blogs/{id} (author or admin).
func (s *Server) updateBlogHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	post, err := s.store.PostByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "blog_get", err)
		return
	}
	if !canModifyPost(userFromContext(r.Context()), post) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	in, mediaURLs, ok := s.readBlogInput(w, r)
	if !ok {
		return
	}

	fields := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "Title cannot be empty")
			return
		}
		fields["title"] = title
	}
	if in.Body != nil {
		fields["body"] = *in.Body
	}
	if in.Published != nil {
		fields["published"] = *in.Published
	}
	switch {
	case in.Media != nil:
		fields["media"] = append(*in.Media, mediaURLs...)
	case len(mediaURLs) > 0:
		fields["media"] = append(post.Media, mediaURLs...)
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	updated, err := s.store.UpdatePost(r.Context(), id, fields)
	if err != nil {
		writeStoreError(w, r, "blog_update", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// deleteBlogHandler handles DELETE /api/blogs/{id} (author or admin).
func (s *Server) deleteBlogHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	post, err := s.store.PostByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "blog_get", err)
		return
	}
	if !canModifyPost(userFromContext(r.Context()), post) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	if err := s.store.DeletePost(r.Context(), id); err != nil {
		writeStoreError(w, r, "blog_delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}
