package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/rux/pkg/domain"
)

// GraphOverlay contains store data to visualize on the graph.
type GraphOverlay struct {
	Roots   []string
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a catalog.
// Shapes:
// - Slice type with own reducers: [Rectangle]
// - Slice type without reducers: ([Stadium])
// Edges:
// - Parent --> Child for inheritance
// - Dep -. "reaction: field" .-> Owner for reactions
func GenerateMermaid(catalog *domain.Catalog, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	types := catalog.Types()
	for _, t := range types {
		safeID := sanitizeMermaidID(t.Name())
		opener, closer := "[", "]"
		if len(t.Reducers()) == 0 {
			opener, closer = "([", "])"
		}

		label := t.Name()
		if n := len(t.OwnFields()); n > 0 {
			label = fmt.Sprintf("%s <br/> %d fields", t.Name(), n)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))
	}

	for _, t := range types {
		for _, p := range t.Parents() {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(p.Name()), sanitizeMermaidID(t.Name())))
		}
	}

	for _, t := range types {
		for _, r := range t.Reactions() {
			for _, dep := range r.Deps() {
				label := strings.ReplaceAll(r.Name()+": "+dep.Field, "\"", "'")
				sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n",
					sanitizeMermaidID(dep.Slice), label, sanitizeMermaidID(t.Name())))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Store\n")
		sb.WriteString("    classDef root fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, name := range overlay.Roots {
			safeID := sanitizeMermaidID(name)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s root;\n", safeID))
			}
		}
		if overlay.Current != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.Current)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
