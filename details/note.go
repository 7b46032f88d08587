package details

import (
	"strings"

	"go.uber.org/zap"
)

// RenderNote builds the Markdown summary of a record. Keys are visited in
// insertion order and empty values (see Value.IsEmpty) are left out entirely.
// Containers are pretty-printed inside a fenced block, scalars are inlined.
func RenderNote(rec *Record, log *zap.Logger) string {
	if log == nil {
		log = zap.NewNop()
	}

	var note strings.Builder
	rec.Each(func(key string, v Value) {
		log.Debug("parsing note key", zap.String("key", key))

		entry, ok := noteEntry(key, v, log)
		if !ok {
			return
		}
		if note.Len() > 0 {
			note.WriteString("\n\n")
		}
		note.WriteString(entry)
	})
	return note.String()
}

func noteEntry(key string, v Value, log *zap.Logger) (string, bool) {
	if v.IsEmpty() {
		log.Debug("note key has no content", zap.String("key", key), zap.Stringer("kind", v.Kind()))
		return "", false
	}
	if v.IsScalar() {
		return "**" + key + "**:\t`" + noteScalar(v) + "`", true
	}

	pretty, err := Pretty(v)
	if err != nil {
		log.Error("could not render note key", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return "**" + key + "**:\n\n```\n" + pretty + "\n```", true
}

// noteScalar spells booleans True/False in notes. JSON output keeps
// true/false.
func noteScalar(v Value) string {
	if b, ok := v.AsBool(); ok {
		if b {
			return "True"
		}
		return "False"
	}
	return v.String()
}
