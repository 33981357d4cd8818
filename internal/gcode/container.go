package gcode

import (
	"bytes"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/charmap"
)

var (
	containerExtensions = []string{".3mf", ".zip"}
	toolpathExtensions  = []string{".gcode", ".gco"}
)

// IsContainer reports whether a file name denotes an archive wrapping a
// toolpath, e.g. "part.gcode.3mf".
func IsContainer(name string) bool {
	return hasExtension(name, containerExtensions)
}

// IsToolpath reports whether a file name denotes a raw toolpath file.
func IsToolpath(name string) bool {
	return hasExtension(name, toolpathExtensions)
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// unwrap returns the bytes of the first toolpath entry of a zip archive.
func unwrap(raw []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &ContainerError{Reason: "unreadable archive", Err: err}
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !IsToolpath(path.Base(f.Name)) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &ContainerError{Reason: "open " + f.Name, Err: err}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &ContainerError{Reason: "read " + f.Name, Err: err}
		}
		return data, nil
	}

	return nil, &ContainerError{Reason: "no toolpath entry found"}
}

// decode returns data as text, falling back to Latin-1 when it is not UTF-8.
func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}

	text, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return string(text), nil
}
