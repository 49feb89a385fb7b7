package runtime

import (
	"fmt"

	"github.com/aretw0/rux/pkg/domain"
)

// sliceTree maps every slice type name reachable from a root (the root itself
// and all of its ancestors) to that root's name.
type sliceTree map[string]string

// register claims typ and each of its ancestors for root. A name already
// claimed by a different root is ambiguous and rejected.
func (t sliceTree) register(typ *domain.SliceType, root string) error {
	claim := func(name string) error {
		if owner, ok := t[name]; ok && owner != root {
			return &domain.ConfigurationError{
				Subject: "slice " + name,
				Reason:  fmt.Sprintf("ambiguous ownership: claimed by %s and %s", owner, root),
			}
		}
		t[name] = root
		return nil
	}

	if err := claim(typ.Name()); err != nil {
		return err
	}
	for _, ancestor := range typ.Ancestors() {
		if err := claim(ancestor.Name()); err != nil {
			return err
		}
	}
	return nil
}
