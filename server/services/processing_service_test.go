package services

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"recserver/database"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleUpload(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"export/chat.txt": "01/01/2024, 10:00 - 0501234567: ממליץ על דוד - חשמלאי, 0521112222\n",
		"export/contacts/יוסי אינסטלטור.vcf": "BEGIN:VCARD\nVERSION:3.0\nFN:יוסי אינסטלטור\nTEL;CELL:050-222-3333\nEND:VCARD",
		"export/readme.pdf":                  "ignored",
	})
}

func TestExtractArchiveRoutesFiles(t *testing.T) {
	input, err := ExtractArchive(sampleUpload(t))
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	defer input.Cleanup()

	txt, err := filepath.Glob(filepath.Join(input.ChatDir, "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(txt) != 1 {
		t.Errorf("chat files = %d, want 1", len(txt))
	}

	vcf, err := filepath.Glob(filepath.Join(input.VCFDir, "*.vcf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(vcf) != 1 {
		t.Errorf("contact files = %d, want 1", len(vcf))
	}

	other, err := filepath.Glob(filepath.Join(input.Root, "*.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Error("non-chat files should not be extracted")
	}
}

func TestExtractArchiveDuplicateNames(t *testing.T) {
	input, err := ExtractArchive(buildZip(t, map[string]string{
		"a/chat.txt": "first",
		"b/chat.txt": "second",
	}))
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	defer input.Cleanup()

	files, err := filepath.Glob(filepath.Join(input.ChatDir, "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("chat files = %d, want both duplicates kept", len(files))
	}
}

func TestExtractArchiveInvalidZip(t *testing.T) {
	if _, err := ExtractArchive([]byte("not a zip")); err == nil {
		t.Fatal("expected an error for a malformed archive")
	}
}

func TestExtractArchiveCleanup(t *testing.T) {
	input, err := ExtractArchive(sampleUpload(t))
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	input.Cleanup()

	if _, err := os.Stat(input.Root); !os.IsNotExist(err) {
		t.Errorf("extraction root still exists after Cleanup: %v", err)
	}
}

func newTestService(t *testing.T, timeout time.Duration) (*ProcessingService, *database.DB) {
	t.Helper()
	db, err := database.NewDB(":memory:", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewProcessingService(db, timeout, "", ""), db
}

func TestProcessCompletes(t *testing.T) {
	svc, db := newTestService(t, time.Minute)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	svc.Process(session.ID, sampleUpload(t))

	got, err := db.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != database.StatusCompleted {
		t.Fatalf("status = %q, want %q (error: %q)", got.Status, database.StatusCompleted, got.ErrorMessage)
	}

	result, err := db.GetResult(session.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if len(result.Recommendations) == 0 {
		t.Error("result carries no recommendations")
	}
	if result.OpenAIEnhanced {
		t.Error("OpenAIEnhanced = true without an API key")
	}
}

func TestProcessRecordsProgress(t *testing.T) {
	svc, db := newTestService(t, time.Minute)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	svc.Process(session.ID, sampleUpload(t))

	got, err := db.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ProgressMessage == "" {
		t.Error("no progress message recorded")
	}
}

func TestProcessInvalidArchive(t *testing.T) {
	svc, db := newTestService(t, time.Minute)

	session, err := db.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	svc.Process(session.ID, []byte("not a zip"))

	got, err := db.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != database.StatusError {
		t.Errorf("status = %q, want %q", got.Status, database.StatusError)
	}
	if got.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
}
