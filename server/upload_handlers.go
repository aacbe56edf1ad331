package server

import (
	"net/http"

	"github.com/fixdesk/fixdesk/profiles"
)

const (
	avatarsBucket = "avatars"
	catalogBucket = "catalog"

	maxUploadBody = 5 << 20
)

// UploadAvatarHandler stores the request body as the signed-in user's avatar
// and writes the resulting public URL back onto the profile row.
func (s *Server) UploadAvatarHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			respondError(w, http.StatusBadRequest, "content type is required")
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxUploadBody)
		url, err := s.backends.Storage.Upload(r.Context(), state.Session.AccessToken,
			avatarsBucket, state.Session.UserID, contentType, body)
		if err != nil {
			respondForError(w, err)
			return
		}

		if state.Profile != nil && !state.Profile.Degraded {
			profile := *state.Profile
			profile.AvatarURL = url
			repo := profiles.NewBackendRepo(s.backends.Data)
			if err := repo.Update(r.Context(), state.Session.AccessToken, &profile); err != nil {
				s.log.Warn().Err(err).Msg("avatar uploaded but profile update failed")
			}
		}

		respondJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// UploadProductImageHandler stores a catalog image for a product and records
// its public URL on the product row.
func (s *Server) UploadProductImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := gatedState(w, r)
		if !ok {
			return
		}
		productID := r.PathValue("id")
		if productID == "" {
			respondError(w, http.StatusBadRequest, "product id is required")
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			respondError(w, http.StatusBadRequest, "content type is required")
			return
		}

		repo, err := s.tenantRepo(state)
		if err != nil {
			respondForError(w, err)
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxUploadBody)
		objectPath := state.Profile.TenantID + "/" + productID
		url, err := s.backends.Storage.Upload(r.Context(), state.Session.AccessToken,
			catalogBucket, objectPath, contentType, body)
		if err != nil {
			respondForError(w, err)
			return
		}

		if err := repo.SetProductImage(r.Context(), state.Session.AccessToken, productID, url); err != nil {
			respondForError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"url": url})
	}
}
