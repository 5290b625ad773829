package timeline

import (
	"fmt"
	"strings"
)

// DebugTrace renders the points on h's backward chain, newest first. Joins
// list their two branches indented beneath them.
func (h History) DebugTrace() string {
	tl := h.timeline()
	var sb strings.Builder
	tl.traceChain(&sb, h.index, origin, "")
	if sb.Len() == 0 {
		return "(origin)\n"
	}
	return sb.String()
}

func (tl *Timeline) traceChain(sb *strings.Builder, from, until int, indent string) {
	for idx := from; idx != until && idx != origin; idx = tl.points[idx].predecessor() {
		p := tl.points[idx]
		switch p.kind {
		case pointAdvancing:
			fmt.Fprintf(sb, "%s#%d emit %s:%v\n", indent, idx, tl.schema.nameOf(p.query), tl.event(p.query, p.event))
		case pointWaiting:
			fmt.Fprintf(sb, "%s#%d wait %s\n", indent, idx, p.delta)
		case pointJoining:
			fmt.Fprintf(sb, "%s#%d join from #%d\n", indent, idx, p.base)
			fmt.Fprintf(sb, "%s  left:\n", indent)
			tl.traceChain(sb, p.left, p.base, indent+"    ")
			fmt.Fprintf(sb, "%s  right:\n", indent)
			tl.traceChain(sb, p.right, p.base, indent+"    ")
		}
	}
}

func (s *Schema) nameOf(query int) string {
	if query < len(s.names) {
		return s.names[query]
	}
	return fmt.Sprintf("query%d", query)
}
