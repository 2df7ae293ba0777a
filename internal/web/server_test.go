package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"image-workbench/internal/compressor"
	"image-workbench/internal/config"
	"image-workbench/internal/statistics"
	"image-workbench/internal/workbench"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halvingCompressor returns the first half of the input bytes.
var halvingCompressor = compressor.CompressorFunc(func(ctx context.Context, f compressor.File, opts compressor.Options) (compressor.File, error) {
	return compressor.File{Name: f.Name, MIMEType: f.MIMEType, Data: f.Data[:len(f.Data)/2]}, nil
})

type viewResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    struct {
		State    string `json:"state"`
		Error    string `json:"error"`
		Original *struct {
			PreviewURL string `json:"preview_url"`
			SizeLabel  string `json:"size_label"`
		} `json:"original"`
		Compressed *struct {
			PreviewURL  string `json:"preview_url"`
			Placeholder string `json:"placeholder"`
			SizeLabel   string `json:"size_label"`
		} `json:"compressed"`
		Buttons *struct {
			Compress struct {
				Enabled bool `json:"enabled"`
			} `json:"compress"`
			Download struct {
				Enabled bool `json:"enabled"`
			} `json:"download"`
		} `json:"buttons"`
	} `json:"data"`
}

type testEnv struct {
	server *Server
	http   *httptest.Server
	client *http.Client
	stats  *statistics.Statistics
}

func newTestEnv(t *testing.T, c compressor.Compressor) *testEnv {
	t.Helper()
	log, _ := test.NewNullLogger()
	stats := statistics.NewStatistics()
	s := NewServer(config.DefaultConfig(), log, c, stats)
	ts := httptest.NewServer(s.Handler())

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop(context.Background())
	})
	return &testEnv{server: s, http: ts, client: &http.Client{Jar: jar}, stats: stats}
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(64, 32, color.NRGBA{R: 200, A: 255}), imaging.JPEG))
	return buf.Bytes()
}

func gifBytes() []byte {
	return []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
}

func (e *testEnv) upload(t *testing.T, source, name, contentType string, data []byte) (*http.Response, viewResponse) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("source", source))
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := e.client.Post(e.http.URL+"/api/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp, decodeView(t, resp)
}

func (e *testEnv) post(t *testing.T, path string) (*http.Response, viewResponse) {
	t.Helper()
	resp, err := e.client.Post(e.http.URL+path, "application/json", nil)
	require.NoError(t, err)
	return resp, decodeView(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.client.Get(e.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decodeView(t *testing.T, resp *http.Response) viewResponse {
	t.Helper()
	defer resp.Body.Close()
	var v viewResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUploadCompressDownloadReset(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)
	data := jpegBytes(t)

	resp, view := env.upload(t, "picker", "photo.jpg", "image/jpeg", data)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", view.Data.State)
	require.NotNil(t, view.Data.Original)
	assert.True(t, view.Data.Buttons.Compress.Enabled)
	assert.False(t, view.Data.Buttons.Download.Enabled)

	originalURL := view.Data.Original.PreviewURL
	previewResp, previewBody := env.get(t, originalURL)
	assert.Equal(t, http.StatusOK, previewResp.StatusCode)
	assert.Equal(t, "image/jpeg", previewResp.Header.Get("Content-Type"))
	assert.Equal(t, data, previewBody)

	resp, view = env.post(t, "/api/compress?wait=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done", view.Data.State)
	require.NotNil(t, view.Data.Compressed)
	assert.NotEmpty(t, view.Data.Compressed.PreviewURL)
	assert.Contains(t, view.Data.Compressed.SizeLabel, "削減")
	assert.True(t, view.Data.Buttons.Download.Enabled)
	assert.False(t, view.Data.Buttons.Compress.Enabled)

	resp, _ = env.post(t, "/api/compress")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "compress disabled once a result exists")

	dlResp, dlBody := env.get(t, "/api/download")
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	_, params, err := mime.ParseMediaType(dlResp.Header.Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "compressed_photo.jpg", params["filename"])
	assert.Equal(t, data[:len(data)/2], dlBody)

	resp, view = env.post(t, "/api/reset")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "empty", view.Data.State)
	assert.Nil(t, view.Data.Original)

	previewResp, _ = env.get(t, originalURL)
	assert.Equal(t, http.StatusNotFound, previewResp.StatusCode, "preview revoked on reset")
	assert.Zero(t, env.server.previews.Live())
}

func TestUploadUnsupportedType(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)

	resp, view := env.upload(t, "drop", "anim.gif", "image/gif", gifBytes())
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.False(t, view.Success)
	assert.Equal(t, workbench.MsgUnsupportedFileType, view.Error)
	assert.Equal(t, "empty", view.Data.State)
	assert.Equal(t, int64(1), env.stats.Snapshot().Rejected)
}

func TestUploadSpoofedTypeIsRejected(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)

	resp, _ := env.upload(t, "picker", "fake.png", "image/png", gifBytes())
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestEmptyDropIsIgnoredButEmptyPickIsRejected(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)

	resp, view := env.upload(t, "drop", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, view.Data.Error)

	resp, view = env.upload(t, "picker", "", "", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, workbench.MsgUnsupportedFileType, view.Data.Error)
}

func TestUnknownUploadSource(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)

	resp, _ := env.upload(t, "clipboard", "a.jpg", "image/jpeg", jpegBytes(t))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompressWithoutImageAndDownloadWithoutResult(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)

	resp, view := env.post(t, "/api/compress")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "empty", view.Data.State)

	dlResp, _ := env.get(t, "/api/download")
	assert.Equal(t, http.StatusNotFound, dlResp.StatusCode)
}

func TestCompressFailureKeepsOriginal(t *testing.T) {
	failing := compressor.CompressorFunc(func(ctx context.Context, f compressor.File, opts compressor.Options) (compressor.File, error) {
		return compressor.File{}, assert.AnError
	})
	env := newTestEnv(t, failing)

	_, _ = env.upload(t, "picker", "photo.jpg", "image/jpeg", jpegBytes(t))
	resp, view := env.post(t, "/api/compress?wait=true")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, workbench.MsgCompressionFailed, view.Error)
	assert.Equal(t, "ready", view.Data.State)
	assert.NotNil(t, view.Data.Original)
	assert.True(t, view.Data.Buttons.Compress.Enabled, "user may retry")
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)
	_, _ = env.upload(t, "picker", "photo.jpg", "image/jpeg", jpegBytes(t))

	other := &http.Client{}
	resp, err := other.Get(env.http.URL + "/api/state")
	require.NoError(t, err)
	view := decodeView(t, resp)
	assert.Equal(t, "empty", view.Data.State)
}

func TestExpireSessionsReleasesPreviews(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)
	_, _ = env.upload(t, "picker", "photo.jpg", "image/jpeg", jpegBytes(t))
	require.Equal(t, 1, env.server.previews.Live())

	ttl := time.Minute
	assert.Zero(t, env.server.expireSessions(time.Now(), ttl))
	assert.Equal(t, 1, env.server.expireSessions(time.Now().Add(2*ttl), ttl))
	assert.Zero(t, env.server.previews.Live())

	_, view := env.post(t, "/api/reset")
	assert.Equal(t, "empty", view.Data.State, "expired cookie gets a fresh session")
}

func TestStatisticsEndpoint(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)
	_, _ = env.upload(t, "picker", "photo.jpg", "image/jpeg", jpegBytes(t))
	_, _ = env.post(t, "/api/compress?wait=true")

	resp, body := env.get(t, "/api/statistics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Data struct {
			Summary string            `json:"summary"`
			Report  statistics.Report `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, int64(1), payload.Data.Report.Uploads)
	assert.Equal(t, int64(1), payload.Data.Report.CompressionsSucceeded)
	assert.Contains(t, payload.Data.Summary, "IMAGE WORKBENCH STATISTICS")
}

// dial opens a WebSocket on the client's session, creating it if needed.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	// Establish the session cookie first so the socket joins the same session.
	_, _ = e.get(t, "/api/state")
	u, err := url.Parse(e.http.URL)
	require.NoError(t, err)

	header := http.Header{}
	for _, c := range e.client.Jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state_changed", msg.Type)
	return msg.Data.(map[string]interface{})["state"].(string)
}

func (e *testEnv) onlySession(t *testing.T) *session {
	t.Helper()
	e.server.sessionsMutex.RLock()
	defer e.server.sessionsMutex.RUnlock()
	require.Len(t, e.server.sessions, 1)
	for _, sess := range e.server.sessions {
		return sess
	}
	return nil
}

func TestWebSocketPushesStateChanges(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)
	conn := env.dial(t)

	assert.Equal(t, "empty", readState(t, conn))

	_, _ = env.upload(t, "picker", "photo.jpg", "image/jpeg", jpegBytes(t))
	assert.Equal(t, "ready", readState(t, conn))
}

func TestWebSocketSkipsSnapshotsOlderThanInitialView(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)
	_, _ = env.upload(t, "picker", "photo.jpg", "image/jpeg", jpegBytes(t))

	sess := env.onlySession(t)
	older := sess.wb.Snapshot()
	older.Kind = workbench.KindEmpty
	older.Source = nil

	// Pretend the upload broadcast has not been delivered yet.
	sess.mu.Lock()
	sess.version = 0
	sess.mu.Unlock()

	conn := env.dial(t)
	assert.Equal(t, "ready", readState(t, conn))

	sess.broadcast(older)
	_, _ = env.upload(t, "picker", "second.jpg", "image/jpeg", jpegBytes(t))

	assert.Equal(t, "ready", readState(t, conn), "older snapshot must not reach the client")
}

func TestUploadDeclaredUnsupportedTypeIsRejected(t *testing.T) {
	env := newTestEnv(t, halvingCompressor)

	resp, view := env.upload(t, "picker", "photo.gif", "image/gif", jpegBytes(t))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, workbench.MsgUnsupportedFileType, view.Error)
	assert.Equal(t, "empty", view.Data.State)
}

func TestResolveMIMEType(t *testing.T) {
	var png bytes.Buffer
	require.NoError(t, imaging.Encode(&png, image.NewNRGBA(image.Rect(0, 0, 2, 2)), imaging.PNG))
	jpg := jpegBytes(t)

	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"missing declaration", "", png.Bytes(), "image/png"},
		{"generic declaration", "application/octet-stream", png.Bytes(), "image/png"},
		{"parameters stripped", "image/jpeg; charset=binary", jpg, "image/jpeg"},
		{"supported type contradicted", "image/png", jpg, "image/jpeg"},
		{"supported type holding gif", "image/png", gifBytes(), "image/gif"},
		{"declared gif holding jpeg", "image/gif", jpg, "image/gif"},
		{"declared bmp holding png", "image/bmp", png.Bytes(), "image/bmp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMIMEType(tt.declared, tt.data))
		})
	}
}
