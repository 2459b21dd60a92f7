package rule

import (
	"strings"

	"github.com/lonnen/jansky/timeutil"
	"github.com/lonnen/jansky/types"
)

// NotesSeparator joins processor notes when they are persisted.
const NotesSeparator = "; "

// EmptySignature is the placeholder signature set at the start of a run.
// It survives only if the pipeline never completes.
const EmptySignature = "EMPTY: crash failed to process"

// Now is the clock used by the metadata rules. Tests substitute a fixed
// time.
var Now = timeutil.UTCNow

// AddNote appends a processor note to the transient metadata holder. It
// is a no-op when metadata is absent (outside a pipeline run).
func AddNote(processed map[string]any, note string) {
	meta := types.Mapping(processed["metadata"])
	if meta == nil {
		return
	}
	notes, _ := meta["processor_notes"].([]string)
	meta["processor_notes"] = append(notes, note)
}

// Notes returns the processor notes accumulated so far in this run.
func Notes(processed map[string]any) []string {
	meta := types.Mapping(processed["metadata"])
	if meta == nil {
		return nil
	}
	notes, _ := meta["processor_notes"].([]string)
	return notes
}

// CreateMetadata starts a processing run. It installs the transient
// metadata holder with an empty note list, marks the crash unsuccessful,
// stamps started_datetime, and seeds the placeholder signature.
//
// On reprocessing, previously persisted processor_notes are split,
// trimmed, and preserved under metadata so SaveMetadata can append them
// after this run's notes; a note records when the earlier processing
// happened.
type CreateMetadata struct{}

func (CreateMetadata) Predicate(string, map[string]any, Dumps, map[string]any) bool { return true }

func (CreateMetadata) Action(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error {
	meta := map[string]any{
		"processor_notes": []string{},
	}
	processed["metadata"] = meta

	if prior, ok := processed["processor_notes"]; ok {
		original := splitNotes(types.AsString(prior))
		meta["original_processor_notes"] = original

		started := "Unknown Date"
		if v, ok := processed["started_datetime"]; ok && types.AsString(v) != "" {
			started = types.AsString(v)
		}
		AddNote(processed, "earlier processing: "+started)
		delete(processed, "processor_notes")
	}

	processed["success"] = false
	processed["started_datetime"] = timeutil.DateToString(Now())
	processed["signature"] = EmptySignature
	return nil
}

// SaveMetadata finishes a processing run. It serializes the accumulated
// notes (new notes first, then any preserved earlier-run notes), stamps
// completed_datetime, marks the crash successful, and destroys the
// transient metadata holder. It must be the last rule applied.
type SaveMetadata struct{}

func (SaveMetadata) Predicate(string, map[string]any, Dumps, map[string]any) bool { return true }

func (SaveMetadata) Action(crashID string, raw map[string]any, dumps Dumps, processed map[string]any) error {
	meta := types.Mapping(processed["metadata"])
	notes, _ := meta["processor_notes"].([]string)
	if original, ok := meta["original_processor_notes"].([]string); ok {
		notes = append(notes, original...)
	}

	processed["processor_notes"] = strings.Join(notes, NotesSeparator)
	processed["completed_datetime"] = timeutil.DateToString(Now())
	processed["success"] = true
	delete(processed, "metadata")
	return nil
}

// splitNotes breaks a persisted processor_notes string back into its
// entries, trimming whitespace and dropping empties.
func splitNotes(s string) []string {
	parts := strings.Split(s, ";")
	notes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			notes = append(notes, trimmed)
		}
	}
	return notes
}
