// landing.go - Landing page singleton: hero media and reels.
package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	maxHeroFiles = 5
	maxReelFiles = 2 // video plus optional thumbnail
)

// getLandingPageHandler handles GET /api/landing-page. The first read
// creates the default document, so this never 404s.
func (s *Server) getLandingPageHandler(w http.ResponseWriter, r *http.Request) {
	lp, err := s.store.LandingPage(r.Context())
	if err != nil {
		writeStoreError(w, r, "landing_get", err)
		return
	}
	writeJSON(w, http.StatusOK, lp)
}

// landingPatch uses pointers so absent fields stay untouched; merges are
// last-write-wins at field granularity.
type landingPatch struct {
	HeroTitle    *string   `json:"heroTitle"`
	HeroSubtitle *string   `json:"heroSubtitle"`
	HeroMedia    *[]string `json:"heroMedia"`
}

// updateLandingPageHandler handles PUT /api/landing-page (admin).
func (s *Server) updateLandingPageHandler(w http.ResponseWriter, r *http.Request) {
	var patch landingPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{}
	if patch.HeroTitle != nil {
		fields["heroTitle"] = strings.TrimSpace(*patch.HeroTitle)
	}
	if patch.HeroSubtitle != nil {
		fields["heroSubtitle"] = strings.TrimSpace(*patch.HeroSubtitle)
	}
	if patch.HeroMedia != nil {
		fields["heroMedia"] = *patch.HeroMedia
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	lp, err := s.store.UpdateLandingPage(r.Context(), fields)
	if err != nil {
		writeStoreError(w, r, "landing_update", err)
		return
	}
	writeJSON(w, http.StatusOK, lp)
}

// uploadLandingFiles pushes every file into the landing-page media folder.
func (s *Server) uploadLandingFiles(r *http.Request, files []uploadedFile) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		u, err := s.uploadFile(r.Context(), f, folderLandingPage)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// uploadHeroMediaHandler handles POST /api/landing-page/hero/upload
// (admin). The uploaded set replaces the hero media URLs.
func (s *Server) uploadHeroMediaHandler(w http.ResponseWriter, r *http.Request) {
	files, _, err := readMultipartMedia(r, maxHeroFiles)
	if err != nil {
		writeMultipartError(w, r, err)
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	urls, err := s.uploadLandingFiles(r, files)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=hero_upload err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	lp, err := s.store.UpdateLandingPage(r.Context(), map[string]any{"heroMedia": urls})
	if err != nil {
		writeStoreError(w, r, "hero_update", err)
		return
	}
	writeJSON(w, http.StatusOK, lp)
}

// uploadMediaHandler handles POST /api/landing-page/upload (admin): a
// general-purpose upload that returns URLs without touching the document.
func (s *Server) uploadMediaHandler(w http.ResponseWriter, r *http.Request) {
	files, _, err := readMultipartMedia(r, maxHeroFiles)
	if err != nil {
		writeMultipartError(w, r, err)
		return
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	urls, err := s.uploadLandingFiles(r, files)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=media_upload err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": urls})
}

// addReelHandler handles POST /api/landing-page/reels (admin). Expects a
// video file and an optional image thumbnail in the "media" field; the new
// reel is appended, keeping insertion order.
func (s *Server) addReelHandler(w http.ResponseWriter, r *http.Request) {
	files, _, err := readMultipartMedia(r, maxReelFiles)
	if err != nil {
		writeMultipartError(w, r, err)
		return
	}

	var video, thumbnail *uploadedFile
	for i := range files {
		if files[i].isVideo() {
			if video != nil {
				writeError(w, http.StatusBadRequest, "Expected one video plus an optional image thumbnail")
				return
			}
			video = &files[i]
		} else {
			if thumbnail != nil {
				writeError(w, http.StatusBadRequest, "Expected one video plus an optional image thumbnail")
				return
			}
			thumbnail = &files[i]
		}
	}
	if video == nil {
		writeError(w, http.StatusBadRequest, "A video file is required")
		return
	}

	videoURL, err := s.uploadFile(r.Context(), *video, folderLandingPage)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=reel_video_upload err=%v", rid, err)
		writeError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	var thumbURL string
	if thumbnail != nil {
		thumbURL, err = s.uploadFile(r.Context(), *thumbnail, folderLandingPage)
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=reel_thumb_upload err=%v", rid, err)
			writeError(w, http.StatusInternalServerError, "Something went wrong!")
			return
		}
	}

	reel := Reel{
		ID:           uuid.NewString(),
		VideoURL:     videoURL,
		ThumbnailURL: thumbURL,
	}
	lp, err := s.store.AddReel(r.Context(), reel)
	if err != nil {
		writeStoreError(w, r, "reel_add", err)
		return
	}
	writeJSON(w, http.StatusCreated, lp)
}

// deleteReelHandler handles DELETE /api/landing-page/reels/{reelId}
// (admin). An unknown id is an explicit 404.
func (s *Server) deleteReelHandler(w http.ResponseWriter, r *http.Request) {
	reelID := r.PathValue("reelId")
	if err := s.store.RemoveReel(r.Context(), reelID); err != nil {
		writeStoreError(w, r, "reel_delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reel deleted"})
}

// updateReelsHandler handles PUT /api/landing-page/reels (admin): the
// ordered array replaces the whole collection. Ids must be unique;
// missing ids are generated.
func (s *Server) updateReelsHandler(w http.ResponseWriter, r *http.Request) {
	var reels []Reel
	if err := decodeJSON(r, &reels); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	seen := make(map[string]bool, len(reels))
	for i := range reels {
		if reels[i].VideoURL == "" {
			writeError(w, http.StatusBadRequest, "Every reel needs a videoUrl")
			return
		}
		if reels[i].ID == "" {
			reels[i].ID = uuid.NewString()
		}
		if seen[reels[i].ID] {
			writeError(w, http.StatusBadRequest, "Duplicate reel id: "+reels[i].ID)
			return
		}
		seen[reels[i].ID] = true
	}

	lp, err := s.store.ReplaceReels(r.Context(), reels)
	if err != nil {
		writeStoreError(w, r, "reels_replace", err)
		return
	}
	writeJSON(w, http.StatusOK, lp)
}
