package dex

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputPath derives the export target for a source archive:
// "app.apk" becomes "app_modified.apk".
func DefaultOutputPath(sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	return strings.TrimSuffix(sourcePath, ext) + "_modified" + ext
}

// Save exports the document to a new archive and returns the path
// written. An empty outputPath derives one from the source path.
//
// Non-bytecode members are copied byte-for-byte in source order,
// compressed payload and headers untouched. Bytecode images with no
// touched classes are copied the same way; only images holding at
// least one replaced or deleted class are re-encoded. The output is
// written to a temporary file and renamed into place, so a failed
// export never leaves a partial archive behind.
func (d *Document) Save(outputPath string) (string, error) {
	if !d.IsOpen() {
		return "", ErrNoDocumentOpen
	}
	if outputPath == "" {
		outputPath = DefaultOutputPath(d.archivePath)
	}

	src, err := zip.OpenReader(d.archivePath)
	if err != nil {
		return "", fmt.Errorf("reopening source archive: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".dexedit-*")
	if err != nil {
		return "", fmt.Errorf("creating temporary archive: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}

	zw := zip.NewWriter(tmp)
	for _, f := range src.File {
		if im, ok := d.byMember[f.Name]; ok && d.imageTouched(im) {
			if err := d.writeRebuiltImage(zw, f, im); err != nil {
				return fail(err)
			}
			continue
		}
		if err := copyRaw(zw, f); err != nil {
			return fail(fmt.Errorf("copying %s: %w", f.Name, err))
		}
	}
	if err := zw.Close(); err != nil {
		return fail(fmt.Errorf("finishing archive: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("closing temporary archive: %w", err))
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving archive into place: %w", err)
	}
	return outputPath, nil
}

// imageTouched reports whether any class declared in the image is
// replaced or deleted. Classes shadowed by a later image do not count;
// their bytes never reach the output from this image anyway, but the
// overlay keys on identifiers the image still owns.
func (d *Document) imageTouched(im *Image) bool {
	for _, c := range im.Classes() {
		if d.overlay.Touched(c.Name()) {
			return true
		}
	}
	return false
}

// writeRebuiltImage re-encodes a touched image: deleted classes are
// dropped, replaced classes substituted, everything else carried over
// unchanged in declaration order.
func (d *Document) writeRebuiltImage(zw *zip.Writer, f *zip.File, im *Image) error {
	var pool []ClassDefinition
	for _, c := range im.Classes() {
		id := c.Name()
		if d.overlay.IsDeleted(id) {
			continue
		}
		if rep, ok := d.overlay.Replacement(id); ok {
			pool = append(pool, rep)
			continue
		}
		pool = append(pool, c)
	}
	data, err := d.codec.EncodeImage(pool)
	if err != nil {
		return &CodecError{Op: "encode", Class: f.Name, Err: err}
	}
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.Name,
		Method:   zip.Deflate,
		Modified: f.Modified,
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", f.Name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", f.Name, err)
	}
	return nil
}

// copyRaw transplants a member without recompression: same header,
// same stored bytes.
func copyRaw(zw *zip.Writer, f *zip.File) error {
	rc, err := f.OpenRaw()
	if err != nil {
		return err
	}
	header := f.FileHeader
	w, err := zw.CreateRaw(&header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}
