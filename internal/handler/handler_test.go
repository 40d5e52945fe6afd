package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/PintaAI/pjkr-winter/internal/attendance"
	"github.com/PintaAI/pjkr-winter/internal/auth"
	"github.com/PintaAI/pjkr-winter/internal/capacity"
	"github.com/PintaAI/pjkr-winter/internal/cloudinary"
	"github.com/PintaAI/pjkr-winter/internal/model"
	"github.com/PintaAI/pjkr-winter/internal/peserta"
	"github.com/PintaAI/pjkr-winter/internal/statustemplate"
	"github.com/PintaAI/pjkr-winter/internal/store"
)

type fakeHealth bool

func (f fakeHealth) Healthy(context.Context) bool { return bool(f) }

type fakeUploader struct{}

func (fakeUploader) Configured() bool { return true }

func (fakeUploader) Upload(_ context.Context, _ []byte, filename string) (*cloudinary.UploadResult, error) {
	return &cloudinary.UploadResult{PublicID: filename, SecureURL: "https://res.example/" + filename}, nil
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *store.Memory
	token  string
}

type body struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	AlreadyRecorded bool            `json:"alreadyRecorded"`
	Peserta         *model.Peserta  `json:"peserta"`
	Data            json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := store.NewMemory()
	tracker := capacity.NewTracker(m)
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia"), bcrypt.MinCost)
	require.NoError(t, err)

	session := SessionConfig{Issuer: "pjkr-test", SigningKey: "test-key", TTL: time.Hour}
	h := New(
		attendance.NewService(m),
		statustemplate.NewRegistry(m),
		peserta.NewService(m, tracker, fakeUploader{}),
		auth.Credentials{Username: "panitia", PasswordHash: string(hash)},
		session,
		map[string]HealthChecker{"db": fakeHealth(true)},
	)
	ts := &testServer{t: t, router: NewRouter(h, RouterOptions{RateLimitPerMin: 10000}), store: m}

	var b body
	code := ts.do(http.MethodPost, "/api/auth/session", map[string]string{"username": "panitia", "password": "rahasia"}, false, &b)
	require.Equal(t, http.StatusCreated, code)
	var s auth.Session
	require.NoError(t, json.Unmarshal(b.Data, &s))
	ts.token = s.AccessToken
	return ts
}

func (ts *testServer) do(method, path string, payload any, authed bool, out *body) int {
	ts.t.Helper()
	var rd *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if out != nil && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

// seed creates a bus, two participants and the attendance templates.
func (ts *testServer) seed() (busID, andiID, budiID string) {
	ts.t.Helper()
	ctx := context.Background()
	b := &model.Bus{Nama: "Bus 1", Kapasitas: 2}
	require.NoError(ts.t, ts.store.CreateBus(ctx, b))
	andi := &model.Peserta{Nama: "Andi", Role: model.RolePeserta, BusID: &b.ID}
	budi := &model.Peserta{Nama: "Budi", Role: model.RolePeserta}
	require.NoError(ts.t, ts.store.CreatePeserta(ctx, andi))
	require.NoError(ts.t, ts.store.CreatePeserta(ctx, budi))
	for _, n := range []string{model.StatusKeberangkatan, model.StatusKepulangan} {
		_, err := ts.store.CreateTemplate(ctx, n, "")
		require.NoError(ts.t, err)
	}
	return b.ID, andi.ID, budi.ID
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":true}`, w.Body.String())
}

func TestSessionRejectsBadPassword(t *testing.T) {
	ts := newTestServer(t)
	var b body
	code := ts.do(http.MethodPost, "/api/auth/session", map[string]string{"username": "panitia", "password": "salah"}, false, &b)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, b.Success)

	code = ts.do(http.MethodPost, "/api/auth/session", map[string]string{}, false, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAttendanceUpdate(t *testing.T) {
	ts := newTestServer(t)
	busID, andi, budi := ts.seed()

	req := map[string]string{"pesertaId": andi, "type": "departure", "busId": busID}

	var b body
	code := ts.do(http.MethodPost, "/api/attendance/update", req, false, &b)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, b.Success)
	assert.False(t, b.AlreadyRecorded)
	assert.Equal(t, "Absen keberangkatan berhasil dicatat", b.Message)

	b = body{}
	code = ts.do(http.MethodPost, "/api/attendance/update", req, false, &b)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, b.Success)
	assert.True(t, b.AlreadyRecorded)
	assert.Equal(t, "Peserta sudah absen keberangkatan", b.Message)

	tests := []struct {
		name    string
		payload map[string]string
		code    int
		message string
	}{
		{name: "wrong bus", payload: map[string]string{"pesertaId": budi, "type": "departure", "busId": busID}, code: http.StatusBadRequest, message: "peserta tidak terdaftar di bus ini"},
		{name: "unknown participant", payload: map[string]string{"pesertaId": "nobody", "type": "return", "busId": busID}, code: http.StatusNotFound, message: "peserta tidak terdaftar"},
		{name: "missing bus", payload: map[string]string{"pesertaId": andi, "type": "departure"}, code: http.StatusBadRequest},
		{name: "bad type", payload: map[string]string{"pesertaId": andi, "type": "sideways", "busId": busID}, code: http.StatusBadRequest},
		{name: "malformed id", payload: map[string]string{"pesertaId": "a b", "type": "return", "busId": busID}, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b body
			code := ts.do(http.MethodPost, "/api/attendance/update", tt.payload, false, &b)
			assert.Equal(t, tt.code, code)
			assert.False(t, b.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, b.Message)
			}
		})
	}
}

func TestStatusUpdateRequiresOrganizer(t *testing.T) {
	ts := newTestServer(t)
	_, andi, _ := ts.seed()
	req := map[string]string{"pesertaId": andi, "statusName": model.StatusKepulangan}

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPost, "/api/status/update", req, false, nil))

	var b body
	code := ts.do(http.MethodPost, "/api/status/update", req, true, &b)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, b.Success)
	require.NotNil(t, b.Peserta)
	st, ok := b.Peserta.StatusByName(model.StatusKepulangan)
	require.True(t, ok)
	assert.True(t, st.Nilai)

	b = body{}
	code = ts.do(http.MethodPost, "/api/status/update", map[string]string{"pesertaId": andi, "statusName": "sudah_tidur"}, true, &b)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "status tidak ditemukan", b.Message)
}

func TestGetPesertaAndQRCode(t *testing.T) {
	ts := newTestServer(t)
	busID, andi, _ := ts.seed()

	var b body
	code := ts.do(http.MethodGet, "/api/peserta/"+andi, nil, false, &b)
	require.Equal(t, http.StatusOK, code)
	var p model.Peserta
	require.NoError(t, json.Unmarshal(b.Data, &p))
	assert.Equal(t, "Andi", p.Nama)
	require.NotNil(t, p.Bus)
	assert.Equal(t, busID, p.Bus.ID)
	assert.Len(t, p.Status, 2)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/peserta/nobody", nil, false, nil))
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/peserta/"+url.PathEscape("a;b"), nil, false, nil))

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/peserta/"+andi+"/qrcode?size=128", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestStatusTemplateLifecycle(t *testing.T) {
	ts := newTestServer(t)
	_, andi, _ := ts.seed()

	var b body
	code := ts.do(http.MethodPost, "/api/dashboard/status-templates", map[string]string{"nama": "sudah_makan"}, true, &b)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Status sudah_makan ditambahkan ke 2 peserta", b.Message)

	code = ts.do(http.MethodPost, "/api/dashboard/status-templates", map[string]string{"nama": "sudah_makan"}, true, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = ts.do(http.MethodPut, "/api/dashboard/status-templates/sudah_makan", map[string]string{"nama": model.StatusKepulangan}, true, nil)
	assert.Equal(t, http.StatusConflict, code)

	code = ts.do(http.MethodPut, "/api/dashboard/status-templates/sudah_makan", map[string]string{"nama": "makan_malam"}, true, nil)
	assert.Equal(t, http.StatusOK, code)

	code = ts.do(http.MethodPut, "/api/dashboard/peserta/"+andi+"/status/makan_malam", map[string]any{"nilai": true, "keterangan": "manual"}, true, nil)
	assert.Equal(t, http.StatusOK, code)

	code = ts.do(http.MethodPost, "/api/dashboard/status-templates/makan_malam/reconcile", nil, true, nil)
	assert.Equal(t, http.StatusOK, code)

	b = body{}
	code = ts.do(http.MethodGet, "/api/dashboard/status-templates", nil, true, &b)
	require.Equal(t, http.StatusOK, code)
	var list []model.StatusTemplate
	require.NoError(t, json.Unmarshal(b.Data, &list))
	assert.Equal(t, []model.StatusTemplate{
		{Nama: model.StatusKeberangkatan, Jumlah: 2},
		{Nama: model.StatusKepulangan, Jumlah: 2},
		{Nama: "makan_malam", Jumlah: 2},
	}, list)

	code = ts.do(http.MethodDelete, "/api/dashboard/status-templates/makan_malam", nil, true, nil)
	assert.Equal(t, http.StatusOK, code)
	code = ts.do(http.MethodDelete, "/api/dashboard/status-templates/makan_malam", nil, true, nil)
	assert.Equal(t, http.StatusNotFound, code)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/dashboard/status-templates", nil, false, nil))
}

func TestRegistrationAndBusAdmin(t *testing.T) {
	ts := newTestServer(t)

	var b body
	code := ts.do(http.MethodPost, "/api/dashboard/bus", map[string]any{"nama": "Bus 1", "kapasitas": 2}, true, &b)
	require.Equal(t, http.StatusCreated, code)
	var bus model.Bus
	require.NoError(t, json.Unmarshal(b.Data, &bus))

	var ids []string
	for _, nama := range []string{"A", "B"} {
		b = body{}
		code := ts.do(http.MethodPost, "/api/dashboard/peserta", map[string]any{"nama": nama, "busId": bus.ID}, true, &b)
		require.Equal(t, http.StatusCreated, code)
		var p model.Peserta
		require.NoError(t, json.Unmarshal(b.Data, &p))
		ids = append(ids, p.ID)
	}

	b = body{}
	code = ts.do(http.MethodPost, "/api/dashboard/peserta", map[string]any{"nama": "C", "busId": bus.ID}, true, &b)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Bus sudah penuh", b.Message)

	code = ts.do(http.MethodPost, "/api/dashboard/peserta", map[string]any{"nama": "D", "email": "not-an-email"}, true, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	b = body{}
	code = ts.do(http.MethodPut, "/api/dashboard/bus/"+bus.ID, map[string]any{"nama": "Bus 1", "kapasitas": 1}, true, &b)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, b.Message, "melebihi kapasitas (2/1)")

	b = body{}
	code = ts.do(http.MethodGet, "/api/dashboard/bus/"+bus.ID, nil, true, &b)
	require.Equal(t, http.StatusOK, code)
	var detail peserta.BusDetail
	require.NoError(t, json.Unmarshal(b.Data, &detail))
	assert.True(t, detail.Capacity.Overcapacity)
	assert.Len(t, detail.Peserta, 2)

	code = ts.do(http.MethodPut, "/api/dashboard/peserta/"+ids[0]+"/bus", map[string]any{"busId": nil}, true, nil)
	assert.Equal(t, http.StatusOK, code)

	b = body{}
	code = ts.do(http.MethodGet, "/api/dashboard/peserta?busId="+bus.ID, nil, true, &b)
	require.Equal(t, http.StatusOK, code)
	var list []model.Peserta
	require.NoError(t, json.Unmarshal(b.Data, &list))
	assert.Len(t, list, 1)

	code = ts.do(http.MethodDelete, "/api/dashboard/peserta/"+ids[1], nil, true, nil)
	assert.Equal(t, http.StatusOK, code)
	code = ts.do(http.MethodDelete, "/api/dashboard/bus/"+bus.ID, nil, true, nil)
	assert.Equal(t, http.StatusOK, code)
	code = ts.do(http.MethodGet, "/api/dashboard/bus/"+bus.ID, nil, true, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUploadBuktiPembayaran(t *testing.T) {
	ts := newTestServer(t)
	_, andi, _ := ts.seed()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "bukti.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("jpegdata"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/dashboard/peserta/"+andi+"/bukti-pembayaran", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, err := ts.store.GetPeserta(context.Background(), andi)
	require.NoError(t, err)
	assert.Equal(t, "https://res.example/bukti.jpg", p.BuktiPembayaran)
}
