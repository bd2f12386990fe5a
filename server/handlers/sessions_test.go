package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"recserver/database"
	"recserver/extractors"
	"recserver/server/middleware"
	"recserver/server/services"
)

func strPtr(s string) *string { return &s }

func newTestRouter(t *testing.T, retention time.Duration) (*gin.Engine, *database.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(":memory:", retention)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	processor := services.NewProcessingService(db, time.Minute, "", "")
	handler := NewSessionHandler(db, processor, 5*1024*1024)

	router := gin.New()
	router.Use(middleware.GinRequestIDMiddleware())
	api := router.Group("/api")
	api.POST("/upload", handler.HandleUpload)
	api.GET("/status/:session_id", handler.HandleStatus)
	api.GET("/results/:session_id", handler.HandleResults)
	api.GET("/export/:session_id", handler.HandleExport)
	api.GET("/health", handler.HandleHealth)
	return router, db
}

func buildUpload(t *testing.T, filename string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	for name, content := range files {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(archive.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func postUpload(t *testing.T, router *gin.Engine) string {
	t.Helper()
	body, contentType := buildUpload(t, "export.zip", map[string]string{
		"chat.txt": "01/01/2024, 10:00 - 0501234567: ממליץ על דוד - חשמלאי, 0521112222\n",
	})

	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("empty session_id")
	}
	if resp.Status != database.StatusProcessing {
		t.Errorf("status = %q, want %q", resp.Status, database.StatusProcessing)
	}
	return resp.SessionID
}

func waitForStatus(t *testing.T, db *database.DB, sessionID, want string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		session, err := db.GetSession(sessionID)
		if err != nil {
			t.Fatalf("GetSession: %v", err)
		}
		if session.Status == want {
			return
		}
		if session.Status == database.StatusError {
			t.Fatalf("processing failed: %s", session.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s never reached status %q", sessionID, want)
}

func TestUploadAndResults(t *testing.T) {
	router, db := newTestRouter(t, 24*time.Hour)

	sessionID := postUpload(t, router)
	waitForStatus(t, db, sessionID, database.StatusCompleted)

	req := httptest.NewRequest("GET", "/api/results/"+sessionID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("results status = %d, body %s", w.Code, w.Body.String())
	}
	var resp ResultsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding results: %v", err)
	}
	if len(resp.Recommendations) == 0 {
		t.Error("no recommendations in results")
	}
	if resp.OpenAIEnhanced {
		t.Error("openai_enhanced = true without an API key")
	}
	if resp.CreatedAt == "" {
		t.Error("created_at missing")
	}
}

func TestUploadRejectsNonZip(t *testing.T) {
	router, _ := newTestRouter(t, 24*time.Hour)

	body, contentType := buildUpload(t, "export.tar", map[string]string{"chat.txt": "x"})
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "zip") {
		t.Errorf("error should mention zip, got %s", w.Body.String())
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	router, _ := newTestRouter(t, 24*time.Hour)

	req := httptest.NewRequest("POST", "/api/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUploadRejectsOversized(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(":memory:", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	processor := services.NewProcessingService(db, time.Minute, "", "")
	handler := NewSessionHandler(db, processor, 128)

	router := gin.New()
	router.POST("/api/upload", handler.HandleUpload)

	body, contentType := buildUpload(t, "export.zip", map[string]string{
		"chat.txt": strings.Repeat("a", 4096),
	})
	req := httptest.NewRequest("POST", "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestStatusUnknownSession(t *testing.T) {
	router, _ := newTestRouter(t, 24*time.Hour)

	req := httptest.NewRequest("GET", "/api/status/no-such-session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), "Session not found") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestStatusReportsProgress(t *testing.T) {
	router, db := newTestRouter(t, 24*time.Hour)

	sessionID := postUpload(t, router)
	waitForStatus(t, db, sessionID, database.StatusCompleted)

	req := httptest.NewRequest("GET", "/api/status/"+sessionID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != database.StatusCompleted {
		t.Errorf("status = %q, want %q", resp.Status, database.StatusCompleted)
	}
	if resp.ProgressMessage == "" {
		t.Error("progress_message missing")
	}
}

func TestResultsWhileProcessing(t *testing.T) {
	router, db := newTestRouter(t, 24*time.Hour)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateSessionStatus(session.ID, database.StatusProcessing, ""); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/results/"+session.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	var resp PendingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != database.StatusProcessing {
		t.Errorf("status = %q, want %q", resp.Status, database.StatusProcessing)
	}
}

func TestResultsExpiredSession(t *testing.T) {
	router, db := newTestRouter(t, -time.Hour)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/results/"+session.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusGone {
		t.Errorf("status = %d, want %d", w.Code, http.StatusGone)
	}
	if !strings.Contains(w.Body.String(), "expired") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestResultsCompletedWithoutResult(t *testing.T) {
	router, db := newTestRouter(t, 24*time.Hour)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateSessionStatus(session.ID, database.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/results/"+session.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestExportCSV(t *testing.T) {
	router, db := newTestRouter(t, 24*time.Hour)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	recs := []extractors.Recommendation{
		{Name: "דוד", Phone: "+972-52-111-2222", Service: strPtr("חשמלאי")},
	}
	if _, err := db.SaveResult(session.ID, recs, false); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateSessionStatus(session.ID, database.StatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/export/"+session.ID+"?format=csv", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, ".csv") {
		t.Errorf("Content-Disposition = %q", got)
	}

	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("body is not CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != "דוד" {
		t.Errorf("data row = %v", rows[1])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	router, db := newTestRouter(t, 24*time.Hour)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveResult(session.ID, nil, false); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/export/"+session.ID+"?format=yaml", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, 24*time.Hour)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}
