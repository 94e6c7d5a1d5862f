package world

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const archiveSuffix = ".tar.zst"

// copyTemplate copies a map template directory into dst. Top level yaml
// files are map metadata and are skipped. Top level .tar.zst archives are
// unpacked into dst instead of being copied.
func copyTemplate(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template %s is not a directory", src)
	}

	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("creating instance directory: %w", err)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		target := filepath.Join(dst, rel)
		topLevel := !strings.ContainsRune(rel, filepath.Separator)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case topLevel && isMetadata(d.Name()):
			return nil
		case topLevel && strings.HasSuffix(d.Name(), archiveSuffix):
			if err := extractArchive(path, dst); err != nil {
				return fmt.Errorf("extracting %s: %w", d.Name(), err)
			}
			return nil
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			// sockets, links and the like have no place in a world template
			return nil
		}
	})
}

func isMetadata(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func extractArchive(path, dst string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening zstd stream: %w", err)
	}
	defer dec.Close()

	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if name == "." {
			continue
		}
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			return fmt.Errorf("archive entry %q escapes instance directory", hdr.Name)
		}
		target := filepath.Join(dst, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			if err := writeEntry(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		}
	}
}

func writeEntry(target string, r io.Reader, perm fs.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
