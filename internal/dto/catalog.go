// Package dto holds serialisable views of rux types shared by the CLI and the
// network adapters.
package dto

import (
	"github.com/aretw0/rux/pkg/domain"
)

// SliceInfo describes one slice type.
type SliceInfo struct {
	Name      string         `json:"name" yaml:"name"`
	Doc       string         `json:"doc,omitempty" yaml:"doc,omitempty"`
	Parents   []string       `json:"parents,omitempty" yaml:"parents,omitempty"`
	Fields    []FieldInfo    `json:"fields" yaml:"fields"`
	Reducers  []ReducerInfo  `json:"reducers,omitempty" yaml:"reducers,omitempty"`
	Reactions []ReactionInfo `json:"reactions,omitempty" yaml:"reactions,omitempty"`
}

// FieldInfo describes a field. Owner is the slice type that declares it.
type FieldInfo struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Owner   string `json:"owner" yaml:"owner"`
	Default any    `json:"default,omitempty" yaml:"default,omitempty"`
	Doc     string `json:"doc,omitempty" yaml:"doc,omitempty"`
}

type ReducerInfo struct {
	Name    string `json:"name" yaml:"name"`
	Owner   string `json:"owner" yaml:"owner"`
	Payload bool   `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type ReactionInfo struct {
	Name string   `json:"name" yaml:"name"`
	Deps []string `json:"deps" yaml:"deps"`
}

// DescribeCatalog lists every slice type in definition order.
func DescribeCatalog(c *domain.Catalog) []SliceInfo {
	types := c.Types()
	out := make([]SliceInfo, 0, len(types))
	for _, t := range types {
		out = append(out, DescribeSlice(t))
	}
	return out
}

// DescribeSlice reports the full layout of t, inherited members included.
func DescribeSlice(t *domain.SliceType) SliceInfo {
	info := SliceInfo{Name: t.Name(), Doc: t.Doc()}
	for _, p := range t.Parents() {
		info.Parents = append(info.Parents, p.Name())
	}

	for _, f := range t.Fields() {
		fi := FieldInfo{Name: f.Name, Owner: f.Owner(), Doc: f.Doc}
		if f.Type != nil {
			fi.Type = f.Type.Name()
		}
		if f.HasDefault {
			fi.Default = f.Default
		}
		info.Fields = append(info.Fields, fi)
	}

	for _, r := range t.AllReducers() {
		info.Reducers = append(info.Reducers, ReducerInfo{
			Name:    r.Name(),
			Owner:   r.Owner().Name(),
			Payload: r.TakesPayload(),
		})
	}

	for _, r := range t.Reactions() {
		ri := ReactionInfo{Name: r.Name()}
		for _, d := range r.Deps() {
			ri.Deps = append(ri.Deps, d.String())
		}
		info.Reactions = append(info.Reactions, ri)
	}
	return info
}
