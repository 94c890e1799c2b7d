package crm

import (
	"sort"
	"strings"
)

const notesFieldSeparator = "\n--\n"

// EncodeOrderNotes concatena la nota libre y los subcampos extraídos ("clave: valor" ordenados por clave).
func EncodeOrderNotes(free string, fields map[string]string) string {
	free = strings.TrimSpace(free)
	if len(fields) == 0 {
		return free
	}
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return free
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, strings.TrimSpace(k)+": "+strings.TrimSpace(fields[k]))
	}
	return free + notesFieldSeparator + strings.Join(lines, "\n")
}

// ParseOrderNotes inverso de EncodeOrderNotes.
func ParseOrderNotes(notes string) (free string, fields map[string]string) {
	fields = make(map[string]string)
	idx := strings.LastIndex(notes, notesFieldSeparator)
	if idx < 0 {
		return strings.TrimSpace(notes), fields
	}
	free = strings.TrimSpace(notes[:idx])
	for _, line := range strings.Split(notes[idx+len(notesFieldSeparator):], "\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return free, fields
}
