package game

// History keeps applied records for undo and undone records for redo.
// Pushing a new record clears the redo stack.
type History struct {
	undo     []*Record
	redo     []*Record
	maxDepth int
}

// NewHistory creates a history that keeps at most maxDepth undoable records.
// Zero means unbounded.
func NewHistory(maxDepth int) *History {
	return &History{maxDepth: maxDepth}
}

// Push appends a freshly applied record, evicting the oldest when full.
func (h *History) Push(rec *Record) {
	h.redo = h.redo[:0]
	h.undo = append(h.undo, rec)
	if h.maxDepth > 0 && len(h.undo) > h.maxDepth {
		h.undo = append(h.undo[:0], h.undo[len(h.undo)-h.maxDepth:]...)
	}
}

// PopUndo removes and returns the newest applied record.
func (h *History) PopUndo() (*Record, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	rec := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	return rec, true
}

// PushRedo stores an undone record.
func (h *History) PushRedo(rec *Record) {
	h.redo = append(h.redo, rec)
}

// PopRedo removes and returns the most recently undone record.
func (h *History) PopRedo() (*Record, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	rec := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return rec, true
}

// Reapply moves a redone record back onto the undo stack without touching
// the rest of the redo stack.
func (h *History) Reapply(rec *Record) {
	h.undo = append(h.undo, rec)
}

// Depth returns the number of undoable records.
func (h *History) Depth() int { return len(h.undo) }

// RedoDepth returns the number of redoable records.
func (h *History) RedoDepth() int { return len(h.redo) }

// Records returns the undoable records oldest first.
func (h *History) Records() []*Record {
	return append([]*Record(nil), h.undo...)
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}
