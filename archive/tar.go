// Package archive packs copy-in payloads into tar archives for upload into a
// container filesystem, and extracts single-file archives fetched from one.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const defaultFileMode = 0o644

// Source is a copy-in payload. Implementations: Bytes, HostPath.
type Source interface {
	// appendTo writes the payload to the archive under target.
	appendTo(tw *tar.Writer, target string) error
}

// Bytes is an in-memory copy-in payload.
type Bytes struct {
	Data []byte
	// Mode is the file mode inside the container; zero means 0644.
	Mode int64
}

func (b Bytes) appendTo(tw *tar.Writer, target string) error {
	mode := b.Mode
	if mode == 0 {
		mode = defaultFileMode
	}
	hdr := &tar.Header{
		Name:     archivePath(target),
		Typeflag: tar.TypeReg,
		Mode:     mode,
		Size:     int64(len(b.Data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(b.Data)
	return err
}

// HostPath is a copy-in payload sourced from the host filesystem.
// A directory is packed recursively, preserving its structure under target.
type HostPath string

func (p HostPath) appendTo(tw *tar.Writer, target string) error {
	info, err := os.Stat(string(p))
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return appendFile(tw, string(p), archivePath(target), info)
	}

	root := string(p)
	return filepath.WalkDir(root, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, entry)
		if err != nil {
			return err
		}
		name := archivePath(target)
		if rel != "." {
			name = path.Join(name, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			hdr := &tar.Header{
				Name:     name + "/",
				Typeflag: tar.TypeDir,
				Mode:     int64(info.Mode().Perm()),
			}
			return tw.WriteHeader(hdr)
		}
		if !info.Mode().IsRegular() {
			// sockets, devices and symlinks have no business in a copy-in
			return nil
		}
		return appendFile(tw, entry, name, info)
	})
}

func appendFile(tw *tar.Writer, hostPath, name string, info fs.FileInfo) error {
	hdr := &tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Tar packs src into a tar archive addressed at target, suitable for upload
// to the container filesystem root.
func Tar(target string, src Source) (*bytes.Buffer, error) {
	if target == "" {
		return nil, fmt.Errorf("copy-in target must not be empty")
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := src.appendTo(tw, target); err != nil {
		return nil, fmt.Errorf("packing %q: %w", target, err)
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

// archivePath converts an absolute container path into the entry name the
// daemon expects when the archive is extracted at /.
func archivePath(target string) string {
	return strings.TrimPrefix(path.Clean(target), "/")
}
