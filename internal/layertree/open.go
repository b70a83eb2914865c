package layertree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"atelier/internal/services"
)

// Open reads the document at path, choosing the decoder by file extension.
// Any failure to open or parse the document is reported as services.ErrCorrupt.
func Open(path string) (*Document, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "layertree", "open", name, err)
	}
	doc, err := Decode(data, name)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode parses document bytes; name carries the original file name and
// selects the format.
func Decode(data []byte, name string) (*Document, error) {
	var (
		doc *Document
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".psd":
		doc, err = ReadPSD(bytes.NewReader(data), name)
	case ".ora":
		doc, err = ReadORA(data, name)
	default:
		return nil, services.Wrap(services.ErrValidation, "layertree", "open", fmt.Sprintf("unsupported document type %q", ext), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrCorrupt, "layertree", "open", name, err)
	}
	return doc, nil
}
