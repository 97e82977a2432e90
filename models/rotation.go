package models

import (
	"bytes"
	"encoding/json"
)

// RotationState is the per-group content pointer.
// Next is the first unused index; Date and Index remember which item was handed out on
// the last day the pointer advanced.
type RotationState struct {
	Next  int    `json:"next"`
	Date  string `json:"date,omitempty"`
	Index int    `json:"index"`
}

// UnmarshalJSON accepts both the object form and the older bare-integer form,
// where the value was only the next unused index.
func (r *RotationState) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		var next int
		if err := json.Unmarshal(trimmed, &next); err != nil {
			return err
		}
		*r = RotationState{Next: next, Index: -1}
		return nil
	}
	type plain RotationState
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = RotationState(p)
	return nil
}

// RotationDocument maps group id to its rotation state.
type RotationDocument map[int64]RotationState

// ContentItem is one entry of the content list.
type ContentItem struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
}
