package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractedInput is the on-disk layout of an unpacked upload: contact
// files under VCFDir, chat transcripts under ChatDir.
type ExtractedInput struct {
	Root    string
	VCFDir  string
	ChatDir string
}

// Cleanup removes the extraction directory.
func (e *ExtractedInput) Cleanup() {
	if e.Root != "" {
		os.RemoveAll(e.Root)
	}
}

// ExtractArchive unpacks a zip upload into a fresh temp directory,
// routing *.vcf and *.txt entries into separate subdirectories. Nested
// archive folders are flattened, everything else in the archive is
// ignored.
func ExtractArchive(data []byte) (*ExtractedInput, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("reading zip archive: %w", err)
	}

	root, err := os.MkdirTemp("", "recserver-upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	input := &ExtractedInput{
		Root:    root,
		VCFDir:  filepath.Join(root, "vcf"),
		ChatDir: filepath.Join(root, "txt"),
	}
	for _, dir := range []string{input.VCFDir, input.ChatDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			input.Cleanup()
			return nil, fmt.Errorf("creating extraction directory: %w", err)
		}
	}

	seen := make(map[string]int)
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(file.Name)
		if strings.HasPrefix(name, ".") || strings.Contains(file.Name, "__MACOSX") {
			continue
		}

		var destDir string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".vcf":
			destDir = input.VCFDir
		case ".txt":
			destDir = input.ChatDir
		default:
			continue
		}

		// Flattening can collide when nested folders repeat a filename.
		if n := seen[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		seen[filepath.Base(file.Name)]++

		if err := extractFile(file, filepath.Join(destDir, name)); err != nil {
			input.Cleanup()
			return nil, err
		}
	}

	return input, nil
}

func extractFile(file *zip.File, dest string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening %s in archive: %w", file.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(src); err != nil {
		return fmt.Errorf("extracting %s: %w", file.Name, err)
	}
	return nil
}
