package report

import (
	"strconv"
	"strings"
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func esc(s string) string {
	return attrEscaper.Replace(s)
}

// xw accumulates the document. Everything is buffered; nothing reaches the
// destination stream until the build finished successfully.
type xw struct {
	b strings.Builder
}

func (w *xw) raw(s string) {
	w.b.WriteString(s)
}

func (w *xw) line(indent int, s string) {
	for i := 0; i < indent; i++ {
		w.b.WriteByte('\t')
	}
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

// openTag writes an element opening with escaped attribute values; attrs
// alternate name, value. Empty values drop the attribute.
func (w *xw) openTag(indent int, name string, attrs ...string) {
	w.tag(indent, name, false, attrs...)
}

// emptyTag writes a self-closing element.
func (w *xw) emptyTag(indent int, name string, attrs ...string) {
	w.tag(indent, name, true, attrs...)
}

func (w *xw) tag(indent int, name string, selfClose bool, attrs ...string) {
	for i := 0; i < indent; i++ {
		w.b.WriteByte('\t')
	}
	w.b.WriteByte('<')
	w.b.WriteString(name)
	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i+1] == "" {
			continue
		}
		w.b.WriteByte(' ')
		w.b.WriteString(attrs[i])
		w.b.WriteString(`="`)
		w.b.WriteString(esc(attrs[i+1]))
		w.b.WriteByte('"')
	}
	if selfClose {
		w.b.WriteString("/>\n")
		return
	}
	w.b.WriteString(">\n")
}

func (w *xw) closeTag(indent int, name string) {
	for i := 0; i < indent; i++ {
		w.b.WriteByte('\t')
	}
	w.b.WriteString("</")
	w.b.WriteString(name)
	w.b.WriteString(">\n")
}

// textTag writes <name>text</name> on one line with escaped content.
func (w *xw) textTag(indent int, name, text string) {
	for i := 0; i < indent; i++ {
		w.b.WriteByte('\t')
	}
	w.b.WriteByte('<')
	w.b.WriteString(name)
	w.b.WriteByte('>')
	w.b.WriteString(esc(text))
	w.b.WriteString("</")
	w.b.WriteString(name)
	w.b.WriteString(">\n")
}

// rowTag writes a data-matrix row: <Row object_ref="...">values</Row>.
func (w *xw) rowTag(indent int, objectRef, values string) {
	for i := 0; i < indent; i++ {
		w.b.WriteByte('\t')
	}
	w.b.WriteString(`<Row object_ref="`)
	w.b.WriteString(esc(objectRef))
	w.b.WriteString(`">`)
	w.b.WriteString(esc(values))
	w.b.WriteString("</Row>\n")
}

func (w *xw) cvParam(indent int, cvRef, accession, name, value string) {
	w.emptyTag(indent, "cvParam", "cvRef", cvRef, "accession", accession, "name", name, "value", value)
}

func (w *xw) userParam(indent int, name, value string) {
	w.emptyTag(indent, "userParam", "name", name, "value", value)
}

// typedUserParam infers the xsd unit name from the value's textual shape,
// mirroring how typed metadata is rendered upstream.
func (w *xw) typedUserParam(indent int, name, value string) {
	unit := "xsd:string"
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		unit = "xsd:integer"
	} else if _, err := strconv.ParseFloat(value, 64); err == nil {
		unit = "xsd:double"
	}
	w.emptyTag(indent, "userParam", "name", name, "unitName", unit, "value", value)
}

func (w *xw) String() string { return w.b.String() }
