package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/pattern"
)

func mustPattern(t *testing.T, src string) pattern.Pattern {
	t.Helper()
	p, err := pattern.Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return p
}

func writeTarGz(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "asset.tar.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip Close: %v", err)
	}
	return path
}

func writeZip(t *testing.T, dir string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "asset.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	return path
}

func archiveAssetType(t *testing.T, format manifest.ArchiveFormat, patternSrc, copyAs string) manifest.AssetType {
	return manifest.AssetType{
		Archive: &manifest.ArchiveAsset{
			Format: format,
			Files: []manifest.BinaryInArchive{
				{PathMatcher: mustPattern(t, patternSrc), CopyAs: copyAs},
			},
		},
	}
}

func TestExtractBinaryVariantPassesThrough(t *testing.T) {
	at := manifest.AssetType{Binary: &manifest.BinaryAsset{CopyAs: "tool"}}
	out, err := Extract("/some/asset/path", at, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out) != 1 || out[0].Path != "/some/asset/path" || out[0].Name != "tool" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestExtractTarGzSingleMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, map[string]string{
		"bin/tool":  "hello",
		"README.md": "docs",
	})
	staging := t.TempDir()
	at := archiveAssetType(t, manifest.TarGz, `bin/tool$`, "tool")

	out, err := Extract(path, at, staging, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 extracted binary, got %d", len(out))
	}
	data, err := os.ReadFile(out[0].Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q, want %q", data, "hello")
	}
	if out[0].Name != "tool" {
		t.Errorf("Name = %q, want tool", out[0].Name)
	}
}

func TestExtractZipSingleMatch(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, map[string]string{
		"usr/bin/tool": "zipped",
	})
	staging := t.TempDir()
	at := archiveAssetType(t, manifest.Zip, `tool$`, "tool")

	out, err := Extract(path, at, staging, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 extracted binary, got %d", len(out))
	}
	data, err := os.ReadFile(out[0].Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "zipped" {
		t.Errorf("content = %q, want %q", data, "zipped")
	}
}

// Two archive entries matching the same pattern is fatal.
func TestExtractPatternMatchedMultiple(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, map[string]string{
		"bin/tool":     "a",
		"usr/bin/tool": "b",
	})
	staging := t.TempDir()
	at := archiveAssetType(t, manifest.TarGz, `.*tool$`, "tool")

	_, err := Extract(path, at, staging, nil)
	if err == nil {
		t.Fatal("expected PatternMatchedMultiple error")
	}
	if _, ok := err.(depserrors.PatternMatchedMultiple); !ok {
		t.Fatalf("expected PatternMatchedMultiple, got %T: %v", err, err)
	}
	entries, _ := os.ReadDir(staging)
	if len(entries) != 0 {
		t.Errorf("expected no staged files after collision, found %d", len(entries))
	}
}

func TestExtractPatternMatchedNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, map[string]string{
		"README.md": "docs",
	})
	staging := t.TempDir()
	at := archiveAssetType(t, manifest.TarGz, `bin/tool$`, "tool")

	_, err := Extract(path, at, staging, nil)
	if err == nil {
		t.Fatal("expected PatternMatchedNothing error")
	}
	nothing, ok := err.(depserrors.PatternMatchedNothing)
	if !ok {
		t.Fatalf("expected PatternMatchedNothing, got %T: %v", err, err)
	}
	if len(nothing.ArchiveEntries) != 1 || nothing.ArchiveEntries[0] != "README.md" {
		t.Errorf("ArchiveEntries = %v, want [README.md]", nothing.ArchiveEntries)
	}
}

func TestExtractEntryMatchedByMultiplePatterns(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, map[string]string{
		"bin/tool": "a",
	})
	staging := t.TempDir()
	at := manifest.AssetType{
		Archive: &manifest.ArchiveAsset{
			Format: manifest.TarGz,
			Files: []manifest.BinaryInArchive{
				{PathMatcher: mustPattern(t, `bin/.*`), CopyAs: "one"},
				{PathMatcher: mustPattern(t, `.*tool$`), CopyAs: "two"},
			},
		},
	}

	_, err := Extract(path, at, staging, nil)
	if err == nil {
		t.Fatal("expected EntryMatchedByMultiplePatterns error")
	}
	if _, ok := err.(depserrors.EntryMatchedByMultiplePatterns); !ok {
		t.Fatalf("expected EntryMatchedByMultiplePatterns, got %T: %v", err, err)
	}
}

func TestNormalizePathTraversal(t *testing.T) {
	cases := map[string]string{
		"bin/tool":          "bin/tool",
		"./bin/tool":        "bin/tool",
		"../../etc/passwd":  "etc/passwd",
		"a/../b/tool":       "b/tool",
		"/abs/bin/tool":     "abs/bin/tool",
		"a/b/../../../tool": "tool",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractDirectoryEntriesIgnoredForMatchingButListed(t *testing.T) {
	dir := t.TempDir()
	path := writeZip(t, dir, map[string]string{
		"bin/":     "",
		"bin/tool": "hi",
	})
	staging := t.TempDir()
	at := archiveAssetType(t, manifest.Zip, `^bin/tool$`, "tool")

	out, err := Extract(path, at, staging, nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out) != 1 || out[0].Name != "tool" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestExtractReporterCalledOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := writeTarGz(t, dir, map[string]string{"bin/tool": "hi"})
	staging := t.TempDir()
	at := archiveAssetType(t, manifest.TarGz, `bin/tool$`, "tool")

	var reported bytes.Buffer
	r := reporterFunc(func(archivePath, extractDir string, fileCount int) {
		reported.WriteString(archivePath)
	})
	if _, err := Extract(path, at, staging, r); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if reported.Len() == 0 {
		t.Error("expected Reporter.Extracted to be called")
	}
}

type reporterFunc func(archivePath, extractDir string, fileCount int)

func (f reporterFunc) Extracted(archivePath, extractDir string, fileCount int) {
	f(archivePath, extractDir, fileCount)
}

func TestOpenUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := open(path, manifest.ArchiveFormat("rar"))
	if err == nil {
		t.Fatal("expected error for unknown archive format")
	}
	if _, ok := err.(depserrors.ArchiveOpenFailed); !ok {
		t.Fatalf("expected ArchiveOpenFailed, got %T", err)
	}
}
