package memstore

import (
	"fmt"

	"chirp/toggle"
)

func errUnknownRelation(rel toggle.Relation) error {
	return fmt.Errorf("memstore: unknown relation %s", rel)
}
