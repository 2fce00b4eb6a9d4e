package syncengine

import (
	"github.com/google/uuid"

	"github.com/sidelinehq/sideline/go/internal/session"
)

// Conflict is the single user-visible conflict interaction: both
// devices edited the same key within one sync window and the automatic
// merge cannot pick a sound winner. The coach chooses keep mine or
// keep theirs; until then the conflicted keys reject local edits.
type Conflict struct {
	SessionID    uuid.UUID
	RemoteDevice string
	Keys         []session.KeyConflict
}

// FieldNames lists the conflicted fields for the prompt.
func (c *Conflict) FieldNames() []string {
	var names []string
	for _, k := range c.Keys {
		names = append(names, string(k.Field)+" "+k.Key.String())
	}
	return names
}

// Blocks reports whether local edits to the given key are held until
// the coach resolves the prompt.
func (c *Conflict) Blocks(key uuid.UUID) bool {
	if c == nil {
		return false
	}
	for _, k := range c.Keys {
		if k.Key == key {
			return true
		}
	}
	return false
}
