package handlers

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matzeds/cookbook/auth"
	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/database"
)

// maxPictureSize caps uploads at 5 MiB.
const maxPictureSize = 5242880

// pictureTypes maps accepted extensions to nothing; membership is the check.
var pictureTypes = map[string]bool{
	"png":  true,
	"jpeg": true,
	"jpg":  true,
	"svg":  true,
	"webp": true,
}

// handleUploadPicture stores an image on disk and records its metadata.
// The picture stays unused until a recipe or book claims it.
func (a *API) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxPictureSize+4096)
	if err := r.ParseMultipartForm(maxPictureSize); err != nil {
		common.RespondError(w, http.StatusRequestEntityTooLarge, "Picture is to big")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		common.RespondError(w, http.StatusBadRequest, "Picture file is required")
		return
	}
	defer file.Close()

	if header.Size > maxPictureSize {
		common.RespondError(w, http.StatusRequestEntityTooLarge, "Picture is to big")
		return
	}

	ext := pictureExtension(header.Filename, header.Header.Get("Content-Type"))
	if ext == "" {
		common.RespondError(w, http.StatusBadRequest, "Unsupported picture type")
		return
	}

	width, height := pictureDimensions(file)
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		common.ErrorLog("pictures: rewind upload: %v", err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	id := uuid.NewString()
	dir := filepath.Join(a.dataDir, "pictures")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		common.ErrorLog("pictures: create %s: %v", dir, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", id, ext))

	dst, err := os.Create(path)
	if err != nil {
		common.ErrorLog("pictures: create %s: %v", path, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		common.ErrorLog("pictures: write %s: %v", path, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		common.ErrorLog("pictures: close %s: %v", path, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	pic := database.Picture{
		ID:         id,
		UserID:     user.ID,
		Filename:   header.Filename,
		UploadedAt: utcNow(),
		Path:       path,
		Alt:        r.FormValue("alt"),
		Height:     height,
		Width:      width,
	}
	if err := a.store.CreatePicture(r.Context(), pic); err != nil {
		os.Remove(path)
		common.ErrorLog("pictures: persist %s: %v", id, err)
		common.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	common.RespondStatusJSON(w, http.StatusCreated, pic)
}

// handleGetPicture serves the stored file. Unused pictures are private
// to their uploader.
func (a *API) handleGetPicture(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "pictureID")

	pic, err := a.store.GetPicture(r.Context(), id)
	if err != nil {
		common.RespondError(w, http.StatusNotFound, "Picture not found")
		return
	}
	if !pic.Used && pic.UserID != user.ID {
		common.RespondError(w, http.StatusUnauthorized, "Access to picture not allowed")
		return
	}
	http.ServeFile(w, r, pic.Path)
}

// pictureExtension resolves the storage extension from the content type
// first and the filename second. Empty means the type is not accepted.
func pictureExtension(filename, contentType string) string {
	if sub, ok := strings.CutPrefix(contentType, "image/"); ok {
		sub = strings.ToLower(sub)
		if sub == "svg+xml" {
			sub = "svg"
		}
		if pictureTypes[sub] {
			return sub
		}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if pictureTypes[ext] {
		return ext
	}
	return ""
}

// pictureDimensions decodes just the image header. SVG and webp are not
// registered decoders, so they report zero dimensions.
func pictureDimensions(f io.ReadSeeker) (width, height int) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, 0
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
