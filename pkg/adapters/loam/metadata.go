package loam

import "github.com/aretw0/rux/pkg/manifest"

// SliceMetadata is the front matter of a slice document.
// The document body, if any, becomes the slice doc string.
type SliceMetadata struct {
	// Name defaults to the document ID without its extension.
	Name    string   `json:"name" mapstructure:"name"`
	Extends []string `json:"extends" mapstructure:"extends"`

	// Fields is a mapping (laid out by name) or a list; see manifest.ParseFields.
	Fields any `json:"fields" mapstructure:"fields"`

	Derive   []manifest.DeriveSpec  `json:"derive" mapstructure:"derive"`
	Reducers []manifest.ReducerSpec `json:"reducers" mapstructure:"reducers"`

	// Root marks the slice as a store root. Without any root, every slice no
	// other slice extends becomes one.
	Root bool `json:"root" mapstructure:"root"`
}
