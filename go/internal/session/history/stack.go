// Package history keeps the bounded undo/redo log of session
// snapshots. Entries are full immutable snapshots, not deltas; depth
// is best effort, eviction of the oldest entry is not an error.
package history

import (
	"github.com/sidelinehq/sideline/go/internal/models"
)

// DefaultLimit caps each of the undo and redo stacks.
const DefaultLimit = 50

// Stack is a bounded LIFO undo list plus a LIFO redo list. It is not
// safe for concurrent use; the engine serializes access.
type Stack struct {
	deviceID string
	limit    int
	sequence uint64

	undo []models.HistoryEntry
	redo []models.HistoryEntry
}

// UndoResult describes one undo step. Restored is the snapshot that
// preceded the undone entry. SkippedRemote is set when remote-tagged
// entries sat above the undone one; the caller must fold their changes
// back in rather than discard them.
type UndoResult struct {
	Restored      *models.GameSession
	Undone        models.HistoryEntry
	SkippedRemote bool
}

// RedoResult describes one redo step. Prior is the newest local
// snapshot still on the undo stack; with remote entries on top it
// serves as the merge base for folding their changes back in.
type RedoResult struct {
	Restored      *models.GameSession
	Redone        models.HistoryEntry
	Prior         *models.GameSession
	SkippedRemote bool
}

// New returns a stack for the given local device. limit <= 0 falls
// back to DefaultLimit.
func New(deviceID string, limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{deviceID: deviceID, limit: limit}
}

// Commit pushes a committed snapshot and invalidates the redo branch.
// The entry is attributed to the local device.
func (s *Stack) Commit(snapshot *models.GameSession) {
	s.push(snapshot, s.deviceID)
}

// CommitRemote pushes a snapshot merged in from another device. Remote
// entries stay on the stack but are tagged so local undo skips them,
// and they bypass the redo branch: a merge arriving after an undo does
// not invalidate the local redo future.
func (s *Stack) CommitRemote(snapshot *models.GameSession, remoteDeviceID string) {
	s.push(snapshot, remoteDeviceID)
}

func (s *Stack) push(snapshot *models.GameSession, deviceID string) {
	s.sequence++
	s.undo = append(s.undo, models.HistoryEntry{
		Snapshot:            snapshot,
		OriginatingDeviceID: deviceID,
		Sequence:            s.sequence,
	})
	if len(s.undo) > s.limit {
		s.undo = s.undo[len(s.undo)-s.limit:]
	}
	if deviceID == s.deviceID {
		s.redo = nil
	}
}

// Undo removes the most recent entry originated by the local device
// and reports the snapshot that preceded it. Interleaved remote
// entries are skipped, never removed: undoing "my last action" must
// not throw away another device's data. Returns false when there is
// nothing local to undo.
func (s *Stack) Undo() (UndoResult, bool) {
	idx := s.lastLocal()
	if idx <= 0 {
		// Entry 0 has no predecessor left on the stack to restore.
		return UndoResult{}, false
	}
	entry := s.undo[idx]
	res := UndoResult{
		Restored:      s.undo[idx-1].Snapshot,
		Undone:        entry,
		SkippedRemote: idx < len(s.undo)-1,
	}

	s.undo = append(s.undo[:idx], s.undo[idx+1:]...)
	s.redo = append(s.redo, entry)
	if len(s.redo) > s.limit {
		s.redo = s.redo[len(s.redo)-s.limit:]
	}
	return res, true
}

// Redo reinstates the most recently undone entry. Returns false when
// the redo list is empty.
func (s *Stack) Redo() (RedoResult, bool) {
	if len(s.redo) == 0 {
		return RedoResult{}, false
	}
	entry := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	res := RedoResult{
		Restored:      entry.Snapshot,
		Redone:        entry,
		SkippedRemote: s.remoteOnTop(),
	}
	if idx := s.lastLocal(); idx >= 0 {
		res.Prior = s.undo[idx].Snapshot
	}

	s.undo = append(s.undo, entry)
	if len(s.undo) > s.limit {
		s.undo = s.undo[len(s.undo)-s.limit:]
	}
	return res, true
}

// CanUndo reports whether Undo would restore a snapshot.
func (s *Stack) CanUndo() bool {
	return s.lastLocal() > 0
}

// CanRedo reports whether Redo would restore a snapshot.
func (s *Stack) CanRedo() bool {
	return len(s.redo) > 0
}

// Depth returns the current undo depth.
func (s *Stack) Depth() int {
	return len(s.undo)
}

// lastLocal returns the index of the newest entry originated by the
// local device, or -1.
func (s *Stack) lastLocal() int {
	for i := len(s.undo) - 1; i >= 0; i-- {
		if s.undo[i].OriginatingDeviceID == s.deviceID {
			return i
		}
	}
	return -1
}

// remoteOnTop reports whether the newest stack entry came from another
// device.
func (s *Stack) remoteOnTop() bool {
	if len(s.undo) == 0 {
		return false
	}
	return s.undo[len(s.undo)-1].OriginatingDeviceID != s.deviceID
}
