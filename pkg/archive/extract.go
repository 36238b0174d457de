// Package archive streams entries out of TarGz/TarXz/Zip archives and
// copies the ones matching a set of per-binary patterns into a staging
// directory.
package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
)

// ExtractedBinary is one file produced by Extract.
type ExtractedBinary struct {
	Path string
	Name string
}

// Reporter is the progress capability Extract reports through; callers
// supply an implementation rather than the package reaching into a
// concrete logger type.
type Reporter interface {
	Extracted(archivePath, extractDir string, fileCount int)
}

// Extract materialises the binaries named by assetType: for the Binary
// variant it returns the asset path unchanged; for the Archive variant it
// streams the archive and copies matching entries into stagingDir.
func Extract(assetPath string, assetType manifest.AssetType, stagingDir string, progress Reporter) ([]ExtractedBinary, error) {
	if assetType.Archive == nil {
		if assetType.Binary == nil {
			return nil, fmt.Errorf("asset type has neither binary nor archive set")
		}
		return []ExtractedBinary{{Path: assetPath, Name: assetType.Binary.CopyAs}}, nil
	}

	arc := assetType.Archive
	entries, err := open(assetPath, arc.Format)
	if err != nil {
		return nil, err
	}
	defer entries.Close()

	bins, err := extractEntries(entries, arc.Files, stagingDir)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress.Extracted(assetPath, stagingDir, len(bins))
	}
	return bins, nil
}

// entryReader abstracts over tar.Reader and zip.Reader so extractEntries
// can walk either with the same loop.
type entryReader interface {
	Next() (name string, body io.Reader, isRegular bool, ok bool, err error)
	Close() error
}

func open(path string, format manifest.ArchiveFormat) (entryReader, error) {
	switch format {
	case manifest.TarGz:
		f, err := os.Open(path)
		if err != nil {
			return nil, depserrors.ArchiveOpenFailed{Path: path, Format: string(format), Cause: err}
		}
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, depserrors.ArchiveOpenFailed{Path: path, Format: string(format), Cause: err}
		}
		return &tarEntryReader{file: f, zip: gz, tr: tar.NewReader(gz)}, nil

	case manifest.TarXz:
		f, err := os.Open(path)
		if err != nil {
			return nil, depserrors.ArchiveOpenFailed{Path: path, Format: string(format), Cause: err}
		}
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, depserrors.ArchiveOpenFailed{Path: path, Format: string(format), Cause: err}
		}
		return &tarEntryReader{file: f, tr: tar.NewReader(xzr)}, nil

	case manifest.Zip:
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, depserrors.ArchiveOpenFailed{Path: path, Format: string(format), Cause: err}
		}
		return &zipEntryReader{rc: zr, idx: 0}, nil

	default:
		return nil, depserrors.ArchiveOpenFailed{Path: path, Format: string(format), Cause: fmt.Errorf("unknown format")}
	}
}

type tarEntryReader struct {
	file *os.File
	zip  *gzip.Reader
	tr   *tar.Reader
}

func (r *tarEntryReader) Next() (string, io.Reader, bool, bool, error) {
	hdr, err := r.tr.Next()
	if err == io.EOF {
		return "", nil, false, false, nil
	}
	if err != nil {
		return "", nil, false, false, err
	}
	return hdr.Name, r.tr, hdr.Typeflag == tar.TypeReg, true, nil
}

func (r *tarEntryReader) Close() error {
	if r.zip != nil {
		r.zip.Close()
	}
	return r.file.Close()
}

type zipEntryReader struct {
	rc  *zip.ReadCloser
	idx int
}

func (r *zipEntryReader) Next() (string, io.Reader, bool, bool, error) {
	if r.idx >= len(r.rc.File) {
		return "", nil, false, false, nil
	}
	f := r.rc.File[r.idx]
	r.idx++
	if f.FileInfo().IsDir() {
		return f.Name, nil, false, true, nil
	}
	rc, err := f.Open()
	if err != nil {
		return "", nil, false, false, err
	}
	return f.Name, &closingReader{ReadCloser: rc}, true, true, nil
}

func (r *zipEntryReader) Close() error { return r.rc.Close() }

// closingReader lets us return io.Reader from Next while still closing the
// underlying per-entry handle once extractEntries is done with it.
type closingReader struct {
	io.ReadCloser
}

// normalizePath splits an archive entry path by '/', drops empty and '.'
// segments, and pops one segment on '..' without ever escaping the root,
// so matching is platform-independent and traversal-safe.
func normalizePath(raw string) string {
	raw = strings.ReplaceAll(raw, "\\", "/")
	parts := strings.Split(raw, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

func extractEntries(r entryReader, files []manifest.BinaryInArchive, stagingDir string) (_ []ExtractedBinary, err error) {
	matchedEntry := make(map[int]string) // pattern index -> matched normalized path
	results := make([]ExtractedBinary, len(files))
	var allEntries []string

	// No staged file survives a failed extraction.
	var staged []string
	defer func() {
		if err != nil {
			for _, p := range staged {
				os.Remove(p)
			}
		}
	}()

	for {
		name, body, isRegular, ok, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("reading archive entry: %w", err)
		}
		if !ok {
			break
		}

		normalized := normalizePath(name)
		allEntries = append(allEntries, normalized)

		if !isRegular || body == nil {
			if rc, ok := body.(*closingReader); ok {
				rc.Close()
			}
			continue
		}

		var hits []int
		for i, f := range files {
			if f.PathMatcher.MatchString(normalized) {
				hits = append(hits, i)
			}
		}

		if len(hits) == 0 {
			if rc, ok := body.(*closingReader); ok {
				rc.Close()
			}
			continue
		}

		if len(hits) > 1 {
			if rc, ok := body.(*closingReader); ok {
				rc.Close()
			}
			var patternStrs []string
			for _, i := range hits {
				patternStrs = append(patternStrs, files[i].PathMatcher.Source())
			}
			return nil, depserrors.EntryMatchedByMultiplePatterns{Entry: normalized, Patterns: patternStrs}
		}

		i := hits[0]
		if prev, ok := matchedEntry[i]; ok {
			if rc, ok := body.(*closingReader); ok {
				rc.Close()
			}
			return nil, depserrors.PatternMatchedMultiple{Pattern: files[i].PathMatcher.Source(), First: prev, Second: normalized}
		}
		matchedEntry[i] = normalized

		destName := fmt.Sprintf("%d-%s", i, files[i].CopyAs)
		destPath := filepath.Join(stagingDir, destName)
		staged = append(staged, destPath)
		if err := copyEntry(destPath, body); err != nil {
			if rc, ok := body.(*closingReader); ok {
				rc.Close()
			}
			return nil, err
		}
		if rc, ok := body.(*closingReader); ok {
			rc.Close()
		}
		results[i] = ExtractedBinary{Path: destPath, Name: files[i].CopyAs}
	}

	for i, f := range files {
		if _, ok := matchedEntry[i]; !ok {
			return nil, depserrors.PatternMatchedNothing{Pattern: f.PathMatcher.Source(), ArchiveEntries: allEntries}
		}
	}

	return results, nil
}

func copyEntry(destPath string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return depserrors.FilesystemError{Op: "mkdir", Path: filepath.Dir(destPath), Cause: err}
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return depserrors.FilesystemError{Op: "create", Path: destPath, Cause: err}
	}
	defer out.Close()
	if _, err := io.Copy(out, body); err != nil {
		return depserrors.FilesystemError{Op: "write", Path: destPath, Cause: err}
	}
	return nil
}
