package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzeds/cookbook/database"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename, contentType string, payload []byte, alt string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if alt != "" {
		require.NoError(t, mw.WriteField("alt", alt))
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/pictures", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadPicture(t *testing.T) {
	ta := newTestAPI(t)
	user := ta.addUser(t, "u1", "alice", "pw", false)

	req := uploadRequest(t, "pizza.png", "image/png", pngBytes(t, 12, 8), "a pizza")
	req.Header.Set("Authorization", ta.bearer(t, user))
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pic database.Picture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pic))
	assert.Equal(t, "pizza.png", pic.Filename)
	assert.Equal(t, "a pizza", pic.Alt)
	assert.Equal(t, 12, pic.Width)
	assert.Equal(t, 8, pic.Height)
	assert.False(t, pic.Used)

	// File landed on disk under the data dir.
	stored := ta.store.pictures[pic.ID]
	info, err := os.Stat(stored.Path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

// The upload part must be named "file"; clients sending any other field
// name get a 400 instead of a silent drop.
func TestUploadPictureRequiresFileField(t *testing.T) {
	ta := newTestAPI(t)
	user := ta.addUser(t, "u1", "alice", "pw", false)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("picture", "pizza.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 2, 2))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/pictures", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", ta.bearer(t, user))
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Picture file is required", detail(t, rec))
}

func TestUploadPictureRejectsType(t *testing.T) {
	ta := newTestAPI(t)
	user := ta.addUser(t, "u1", "alice", "pw", false)

	req := uploadRequest(t, "notes.txt", "text/plain", []byte("hello"), "")
	req.Header.Set("Authorization", ta.bearer(t, user))
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported picture type", detail(t, rec))
}

func TestUploadPictureSizeLimit(t *testing.T) {
	ta := newTestAPI(t)
	user := ta.addUser(t, "u1", "alice", "pw", false)

	big := make([]byte, maxPictureSize+1)
	req := uploadRequest(t, "big.png", "image/png", big, "")
	req.Header.Set("Authorization", ta.bearer(t, user))
	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetPictureVisibility(t *testing.T) {
	ta := newTestAPI(t)
	owner := ta.addUser(t, "u1", "alice", "pw", false)
	other := ta.addUser(t, "u2", "bob", "pw", false)

	path := ta.writePictureFile(t)
	ta.store.pictures["pic-1"] = database.Picture{ID: "pic-1", UserID: owner.ID, Path: path}

	// Unused pictures stay private to the uploader.
	rec := ta.do(t, http.MethodGet, "/api/pictures/pic-1", ta.bearer(t, other), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/pictures/pic-1", ta.bearer(t, owner), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Once claimed by a recipe, everyone with a token may fetch it.
	used := ta.store.pictures["pic-1"]
	used.Used = true
	ta.store.pictures["pic-1"] = used
	rec = ta.do(t, http.MethodGet, "/api/pictures/pic-1", ta.bearer(t, other), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func (ta *testAPI) writePictureFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "pic-*.png")
	require.NoError(t, err)
	_, err = f.Write(pngBytes(t, 2, 2))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}
