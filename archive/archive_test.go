package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func entries(t *testing.T, buf *bytes.Buffer) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	tr := tar.NewReader(buf)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("reading entry %q: %v", hdr.Name, err)
		}
		out[hdr.Name] = data
	}
}

func TestTar_Bytes(t *testing.T) {
	buf, err := Tar("/opt/x.txt", Bytes{Data: []byte("hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := entries(t, buf)
	if string(got["opt/x.txt"]) != "hello" {
		t.Errorf("entry opt/x.txt = %q, want hello", got["opt/x.txt"])
	}
}

func TestTar_BytesMode(t *testing.T) {
	buf, err := Tar("/run.sh", Bytes{Data: []byte("#!/bin/sh\n"), Mode: 0o755})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr := tar.NewReader(buf)
	hdr, err := tr.Next()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Mode != 0o755 {
		t.Errorf("mode = %o, want 755", hdr.Mode)
	}
}

func TestTar_HostPathFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	buf, err := Tar("/etc/data.bin", HostPath(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := entries(t, buf)
	if string(got["etc/data.bin"]) != "payload" {
		t.Errorf("entry = %q, want payload", got["etc/data.bin"])
	}
}

func TestTar_HostPathTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	buf, err := Tar("/opt/tree", HostPath(dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := entries(t, buf)
	if string(got["opt/tree/a.txt"]) != "a" {
		t.Errorf("missing opt/tree/a.txt, entries: %v", keys(got))
	}
	if string(got["opt/tree/sub/b.txt"]) != "b" {
		t.Errorf("missing opt/tree/sub/b.txt, entries: %v", keys(got))
	}
}

func TestTar_EmptyTarget(t *testing.T) {
	if _, err := Tar("", Bytes{Data: []byte("x")}); err == nil {
		t.Error("expected error for empty target")
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func singleFileArchive(t *testing.T, name string, data []byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(data))}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestExtractSingleFile_Buffer(t *testing.T) {
	archive := singleFileArchive(t, "r.txt", []byte("42\n"))

	var out bytes.Buffer
	if err := ExtractSingleFile(archive, BufferSink{Buf: &out}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("extracted %q, want 42\\n", out.String())
	}
}

func TestExtractSingleFile_Path(t *testing.T) {
	archive := singleFileArchive(t, "r.txt", []byte("42\n"))

	dst := filepath.Join(t.TempDir(), "out.txt")
	if err := ExtractSingleFile(archive, PathSink(dst)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "42\n" {
		t.Errorf("file content = %q, want 42\\n", data)
	}
}

func TestExtractSingleFile_Directory(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	err := ExtractSingleFile(&buf, BufferSink{Buf: &bytes.Buffer{}})
	if !errors.Is(err, ErrUnexpectedDirectory) {
		t.Errorf("err = %v, want ErrUnexpectedDirectory", err)
	}
}

func TestExtractSingleFile_MultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range []string{"a", "b"} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: 1}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	err := ExtractSingleFile(&buf, BufferSink{Buf: &bytes.Buffer{}})
	if !errors.Is(err, ErrUnexpectedEntries) {
		t.Errorf("err = %v, want ErrUnexpectedEntries", err)
	}
}

func TestExtractSingleFile_Empty(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	err := ExtractSingleFile(&buf, BufferSink{Buf: &bytes.Buffer{}})
	if !errors.Is(err, ErrEmptyArchive) {
		t.Errorf("err = %v, want ErrEmptyArchive", err)
	}
}
