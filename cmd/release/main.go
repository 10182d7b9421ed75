// Command release packages the scraped data directory into .tar.gz and
// .zip archives for publishing.
package main

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const archiveName = "data"

func main() {
	dataDir := flag.String("data", "data", "Directory holding the scraped CSV files")
	releaseDir := flag.String("out", "release", "Directory to write the archives to")
	force := flag.Bool("force", false, "Overwrite an existing release")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := run(*dataDir, *releaseDir, *force); err != nil {
		slog.Error("release failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(dataDir, releaseDir string, force bool) error {
	info, err := os.Stat(dataDir)
	if err != nil {
		return fmt.Errorf("cannot find data directory %q: %w", dataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", dataDir)
	}

	if err := os.MkdirAll(releaseDir, 0o755); err != nil {
		return fmt.Errorf("create release directory: %w", err)
	}

	tarPath := filepath.Join(releaseDir, archiveName+".tar.gz")
	zipPath := filepath.Join(releaseDir, archiveName+".zip")
	if !force {
		for _, path := range []string{tarPath, zipPath} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists; pass -force to overwrite", path)
			}
		}
	}

	if err := writeTarGz(dataDir, tarPath); err != nil {
		return fmt.Errorf("write %s: %w", tarPath, err)
	}
	slog.Info("archive written", slog.String("path", tarPath))

	if err := writeZip(dataDir, zipPath); err != nil {
		return fmt.Errorf("write %s: %w", zipPath, err)
	}
	slog.Info("archive written", slog.String("path", zipPath))

	return nil
}

func writeTarGz(dataDir, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = walkFiles(dataDir, func(relPath string, info os.FileInfo, file io.Reader) error {
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = relPath
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}

func writeZip(dataDir, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	err = walkFiles(dataDir, func(relPath string, info os.FileInfo, file io.Reader) error {
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = relPath
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, file)
		return err
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return f.Close()
}

// walkFiles calls fn for every regular file under dataDir with its path
// relative to dataDir, mirroring an archive rooted at the data directory.
func walkFiles(dataDir string, fn func(relPath string, info os.FileInfo, file io.Reader) error) error {
	return filepath.Walk(dataDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		return fn(filepath.ToSlash(relPath), info, file)
	})
}
