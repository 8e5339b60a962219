package csvenc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"pwexport/internal/models"
)

// Supported output encodings.
const (
	EncodingUTF8  = "utf-8"
	EncodingUTF16 = "utf-16"
)

// ValidEncoding reports whether name is a supported output encoding.
func ValidEncoding(name string) bool {
	switch strings.ToLower(name) {
	case EncodingUTF8, "utf8", EncodingUTF16, "utf16":
		return true
	}
	return false
}

func encoderFor(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case EncodingUTF16, "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	default:
		return nil
	}
}

// WriteFile writes content to path, truncating any previous file. The data
// goes to a temporary file in the same directory which is then renamed over
// path, so a failed write never leaves a half-written document behind.
func WriteFile(path, content, enc string) error {
	data := []byte(content)
	if e := encoderFor(enc); e != nil {
		encoded, err := e.NewEncoder().Bytes(data)
		if err != nil {
			return models.NewError(models.KindWriteFailure, "encode output as "+enc, err)
		}
		data = encoded
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return models.NewError(models.KindWriteFailure, fmt.Sprintf("create temp file in %s", dir), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.NewError(models.KindWriteFailure, "write "+path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.NewError(models.KindWriteFailure, "close "+path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return models.NewError(models.KindWriteFailure, "chmod "+path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return models.NewError(models.KindWriteFailure, "replace "+path, err)
	}
	return nil
}
