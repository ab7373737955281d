// settings.go - Site-wide settings singleton.
package server

import (
	"net/http"
	"strings"
)

// getSettingsHandler handles GET /api/site-settings. Creates the default
// document on first read.
func (s *Server) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	ss, err := s.store.SiteSettings(r.Context())
	if err != nil {
		writeStoreError(w, r, "settings_get", err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

type settingsPatch struct {
	ContactEmail *string            `json:"contactEmail"`
	ContactPhone *string            `json:"contactPhone"`
	SocialLinks  *map[string]string `json:"socialLinks"`
	Features     *map[string]bool   `json:"features"`
}

// updateSettingsHandler handles PUT /api/site-settings (admin). Absent
// fields keep their stored values.
func (s *Server) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var patch settingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	fields := map[string]any{}
	if patch.ContactEmail != nil {
		email := strings.TrimSpace(*patch.ContactEmail)
		if email != "" && !validateEmail(email) {
			writeError(w, http.StatusBadRequest, "Invalid email address")
			return
		}
		fields["contactEmail"] = email
	}
	if patch.ContactPhone != nil {
		fields["contactPhone"] = strings.TrimSpace(*patch.ContactPhone)
	}
	if patch.SocialLinks != nil {
		fields["socialLinks"] = *patch.SocialLinks
	}
	if patch.Features != nil {
		fields["features"] = *patch.Features
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	ss, err := s.store.UpdateSiteSettings(r.Context(), fields)
	if err != nil {
		writeStoreError(w, r, "settings_update", err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}
