package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the whole persisted playlist. Version increases by one on
// every successful save and is used as an optimistic concurrency token.
type Document struct {
	Version uint64        `json:"version"`
	Items   []ContentItem `json:"items"`
}

// Clone returns a copy whose Items slice can be modified freely. Items
// themselves are never mutated in place so their pointers are shared.
func (d Document) Clone() Document {
	items := make([]ContentItem, len(d.Items))
	copy(items, d.Items)
	return Document{Version: d.Version, Items: items}
}

// IndexOf returns the position of the item with id, or -1.
func (d Document) IndexOf(id string) int {
	for i, item := range d.Items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// EncodeDocument renders the on-disk form of doc.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc.Items == nil {
		doc.Items = []ContentItem{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeDocument parses a stored document. Empty input is an empty
// document, and a bare JSON array is read as a version 0 document.
func DecodeDocument(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{Items: []ContentItem{}}, nil
	}

	if trimmed[0] == '[' {
		var items []ContentItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Document{}, fmt.Errorf("decode legacy playlist: %w", err)
		}
		if items == nil {
			items = []ContentItem{}
		}
		return Document{Items: items}, nil
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Document{}, fmt.Errorf("decode playlist: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []ContentItem{}
	}
	return doc, nil
}
