// Package storage persists named JSON documents.
//
// A Gateway never fails a Load: missing, unreadable or corrupt documents come
// back empty and the problem is logged. Save reports failures as errors
// wrapping model.ErrPersistence.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"marbitz-battlebot/internal/model"
)

// Document is a JSON object keyed by identity or challenge ID.
type Document map[string]json.RawMessage

// Gateway loads and saves whole documents by name. Implementations keep no
// state between calls.
type Gateway interface {
	Load(name string) Document
	Save(name string, doc Document) error
}

// validateSave checks the preconditions shared by every backend.
func validateSave(name string, doc Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document %q is nil", model.ErrInvalidArgument, name)
	}
	return validateName(name)
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: bad document name %q", model.ErrInvalidArgument, name)
	}
	return nil
}

// LoadInto decodes every entry of a document into T. Entries that do not
// decode are logged and skipped.
func LoadInto[T any](g Gateway, name string) map[string]T {
	doc := g.Load(name)
	out := make(map[string]T, len(doc))
	for key, raw := range doc {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			log.Warn().Err(err).Str("document", name).Str("key", key).Msg("Skipping malformed entry")
			continue
		}
		out[key] = v
	}
	return out
}

// SaveFrom encodes a typed map and saves it as a document.
func SaveFrom[T any](g Gateway, name string, m map[string]T) error {
	doc := make(Document, len(m))
	for key, v := range m {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: encode %s[%s]: %v", model.ErrInvalidArgument, name, key, err)
		}
		doc[key] = raw
	}
	return g.Save(name, doc)
}

// Decode unmarshals a whole document into v, e.g. a struct.
func Decode(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Encode converts a struct or map into a document.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: value is not a JSON object: %v", model.ErrInvalidArgument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: value encodes to null", model.ErrInvalidArgument)
	}
	return doc, nil
}
