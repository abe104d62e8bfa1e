// Package archive extracts a single named executable entry from a
// release archive (zip or gzipped tar) and installs it with executable
// permissions.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ExtractZipEntry extracts the entry named entryName from the zip
// archive at archivePath into destPath. The entry is located by exact
// name through the archive's central directory; a missing entry is a
// hard error.
func ExtractZipEntry(archivePath, entryName, destPath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}
	defer reader.Close()

	entry, err := reader.Open(entryName)
	if err != nil {
		return fmt.Errorf("entry %s not found in archive: %w", entryName, err)
	}
	defer entry.Close()

	return writeExecutable(destPath, entry)
}

// ExtractTarGzEntry extracts the member named memberPath from the
// gzipped tar archive at archivePath into destPath. memberPath is the
// full member path inside the archive (conventionally
// "<dirname>/<exe>"); reaching the end of the archive without finding
// it is a hard error.
func ExtractTarGzEntry(archivePath, memberPath, destPath string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return fmt.Errorf("member %s not found in archive", memberPath)
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		if header.Typeflag != tar.TypeReg || filepath.ToSlash(header.Name) != memberPath {
			continue
		}

		return writeExecutable(destPath, tarReader)
	}
}

// writeExecutable copies src into destPath with 0755 permissions,
// creating the parent directory if needed.
func writeExecutable(destPath string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(outFile, src); err != nil {
		outFile.Close()
		return fmt.Errorf("write file: %w", err)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// SetExecutable sets executable permissions on a file.
func SetExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
