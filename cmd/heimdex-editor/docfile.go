package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/heimdex/heimdex-editor/internal/timeline"
)

// docFile is the on-disk form the offline commands read and write: the
// persisted document blob next to the asset list it was built from.
type docFile struct {
	Document json.RawMessage  `json:"document,omitempty"`
	Assets   []timeline.Asset `json:"assets"`
}

type workspace struct {
	file  docFile
	doc   *timeline.Document
	state *timeline.State
}

func openDocument(path string) (*workspace, error) {
	if path == "" {
		return nil, errors.New("--doc is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var f docFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse document file %s: %w", path, err)
	}
	doc, err := timeline.ParseDocument(f.Document)
	if err != nil {
		return nil, err
	}
	state, err := timeline.Hydrate(doc, f.Assets)
	if err != nil {
		return nil, err
	}
	return &workspace{file: f, doc: doc, state: state}, nil
}

// save stores state in the document and writes the file through a temp file
// in the same directory.
func (w *workspace) save(path string, state *timeline.State) error {
	if err := w.doc.SetState(state); err != nil {
		return err
	}
	blob, err := w.doc.Encode()
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	w.file.Document = blob
	w.state = state

	data, err := json.MarshalIndent(w.file, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".heimdex-doc-*")
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

func readOperations(path string) (timeline.OperationList, error) {
	if path == "" {
		return nil, errors.New("--ops is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read operations: %w", err)
	}
	var ops timeline.OperationList
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("parse operations %s: %w", path, err)
	}
	return ops, nil
}
