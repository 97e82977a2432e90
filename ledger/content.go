package ledger

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cppla/rollcall/models"
)

// FileContent reads the content list from a YAML file on every call, so items
// appended to the file are picked up without a restart.
//
// Accepted layouts:
//
//	items:
//	  - title: ...
//	    body: ...
//
// or a bare top-level sequence of the same mappings. A plain string entry is
// taken as the body.
type FileContent struct {
	Path string
}

type contentFile struct {
	Items []contentEntry `yaml:"items"`
}

type contentEntry struct {
	models.ContentItem
}

func (e *contentEntry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.Body = n.Value
		return nil
	}
	return n.Decode(&e.ContentItem)
}

func (f FileContent) Items(_ context.Context) ([]models.ContentItem, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return parseContent(raw)
}

func parseContent(raw []byte) ([]models.ContentItem, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if len(root.Content) == 0 {
		return []models.ContentItem{}, nil
	}

	var entries []contentEntry
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, fmt.Errorf("parse content: %w", err)
		}
	case yaml.MappingNode:
		var cf contentFile
		if err := doc.Decode(&cf); err != nil {
			return nil, fmt.Errorf("parse content: %w", err)
		}
		entries = cf.Items
	default:
		return nil, fmt.Errorf("parse content: unexpected yaml node kind %d", doc.Kind)
	}

	items := make([]models.ContentItem, 0, len(entries))
	for i, e := range entries {
		it := e.ContentItem
		if it.ID == "" {
			it.ID = strconv.Itoa(i + 1)
		}
		items = append(items, it)
	}
	return items, nil
}
