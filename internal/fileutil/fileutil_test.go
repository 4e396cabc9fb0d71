package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTargetName(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"/incoming/report.docx", "report.docx.pdf"},
		{"/incoming/abc123_UPLOAD_report.docx", "report.docx.pdf"},
		{"/incoming/a_UPLOAD_b_UPLOAD_sheet.xlsx", "sheet.xlsx.pdf"},
		{"/incoming/no-extension", "no-extension.pdf"},
	}
	for _, tc := range cases {
		if got := TargetName(tc.source); got != tc.want {
			t.Errorf("TargetName(%s) = %s, want %s", tc.source, got, tc.want)
		}
	}
}

func TestTargetPath(t *testing.T) {
	got := TargetPath("/incoming/xyz_UPLOAD_deck.pptx", "/converted")
	if got != filepath.Join("/converted", "deck.pptx.pdf") {
		t.Fatalf("TargetPath = %s", got)
	}
}

func TestListFilesSkipsDirsAndHidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.docx", "a.xlsx", ".hidden"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v", files)
	}
	if filepath.Base(files[0]) != "a.xlsx" || filepath.Base(files[1]) != "b.docx" {
		t.Fatalf("unexpected order: %v", files)
	}
}

func TestListFilesMissingDir(t *testing.T) {
	if _, err := ListFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestReadableSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := ReadableSize(tc.bytes); got != tc.want {
			t.Errorf("ReadableSize(%d) = %s, want %s", tc.bytes, got, tc.want)
		}
	}
}
