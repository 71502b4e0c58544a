package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"marbitz-battlebot/internal/model"
)

// FileGateway stores each document as <dir>/<name>.json.
type FileGateway struct {
	fs  afero.Fs
	dir string
}

// NewFileGateway creates a gateway rooted at dir. A nil fs uses the OS filesystem.
func NewFileGateway(fs afero.Fs, dir string) *FileGateway {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	return &FileGateway{fs: fs, dir: dir}
}

// Path returns the file backing a document.
func (g *FileGateway) Path(name string) string {
	return filepath.Join(g.dir, name+".json")
}

// Load reads a document. It returns an empty document if the file is absent,
// unreadable or not a JSON object.
func (g *FileGateway) Load(name string) Document {
	if err := validateName(name); err != nil {
		log.Error().Err(err).Msg("Refusing to load document")
		return Document{}
	}

	path := g.Path(name)
	data, err := afero.ReadFile(g.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", path).Msg("Document not found, starting empty")
		} else {
			log.Error().Err(err).Str("path", path).Msg("Failed to read document")
		}
		return Document{}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		log.Error().Err(err).Str("path", path).Msg("Document is not a JSON object, starting empty")
		return Document{}
	}
	return doc
}

// Save writes the whole document to a temp file in the same directory and
// renames it over the target.
func (g *FileGateway) Save(name string, doc Document) error {
	if err := validateSave(name, doc); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", model.ErrInvalidArgument, name, err)
	}

	if err := g.writeAtomic(g.Path(name), data); err != nil {
		log.Error().Err(err).Str("document", name).Msg("Failed to save document")
		return fmt.Errorf("%w: save %s: %v", model.ErrPersistence, name, err)
	}
	return nil
}

func (g *FileGateway) writeAtomic(path string, data []byte) error {
	if err := g.fs.MkdirAll(g.dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(g.fs, g.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = g.fs.Rename(tmpName, path)
	}
	if err != nil {
		_ = g.fs.Remove(tmpName)
		return err
	}
	return nil
}
