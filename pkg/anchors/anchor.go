// Package anchors stores named snapshots ("anchors") of a parameter tree.
// Anchors are immutable in their trees once created; only descriptive metadata
// can change. The Store persists through an injected Persister, publishes
// lifecycle events and can expose itself as toolbox tools.
package anchors

import (
	"slices"

	"github.com/germanamz/mmpa/pkg/paramtree"
)

// Version is written into every anchor created by this package.
const Version = "1.0"

// MaxRating is the upper bound applied to Patch.Rating.
const MaxRating = 5

// Anchor is a captured snapshot of a parameter tree plus metadata.
type Anchor struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Timestamp      int64          `json:"timestamp"`
	Version        string         `json:"version"`
	Tree           paramtree.Tree `json:"tree"`
	VisualState    paramtree.Tree `json:"visualState"`
	Tags           []string       `json:"tags"`
	Rating         int            `json:"rating"`
	Notes          string         `json:"notes"`
	IsShared       bool           `json:"isShared"`
	CommunityID    *string        `json:"communityId"`
	ResonanceScore float64        `json:"resonanceScore"`
}

// NewAnchor holds the caller-supplied fields for Store.Create.
type NewAnchor struct {
	Name        string
	Description string
	Tree        paramtree.Tree
	VisualState paramtree.Tree
	Tags        []string
}

// Patch describes a partial metadata update. Nil fields are left unchanged.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Rating      *int      `json:"rating,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

// Clone returns a deep copy of a. Trees held by a Store are always valid, so
// the copy cannot fail.
func (a Anchor) Clone() Anchor {
	cp := a
	cp.Tree = paramtree.MustClone(a.Tree)
	cp.VisualState = paramtree.MustClone(a.VisualState)
	cp.Tags = slices.Clone(a.Tags)
	if a.CommunityID != nil {
		id := *a.CommunityID
		cp.CommunityID = &id
	}

	return cp
}

// normalize clones the trees of a decoded anchor, rejecting values that are
// not JSON-safe. A missing visual state becomes an empty tree.
func (a Anchor) normalize() (Anchor, error) {
	tree, err := paramtree.Clone(a.Tree)
	if err != nil {
		return Anchor{}, err
	}

	visual, err := paramtree.Clone(a.VisualState)
	if err != nil {
		return Anchor{}, err
	}

	if visual == nil {
		visual = paramtree.Tree{}
	}

	a.Tree = tree
	a.VisualState = visual
	a.Tags = slices.Clone(a.Tags)
	if a.Version == "" {
		a.Version = Version
	}

	return a, nil
}

func (p Patch) apply(a *Anchor) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Tags != nil {
		a.Tags = slices.Clone(*p.Tags)
	}
	if p.Rating != nil {
		a.Rating = max(0, min(MaxRating, *p.Rating))
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
}
