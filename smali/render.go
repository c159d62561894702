package smali

import (
	"fmt"
	"strings"
)

// Render writes the canonical smali form of a class. Parse(Render(c))
// round-trips to an equal class.
func Render(c *Class) string {
	var b strings.Builder

	fmt.Fprintf(&b, ".class %s\n", joinDecl(c.ClassFlags, c.ClassName))
	fmt.Fprintf(&b, ".super %s\n", c.Super)
	for _, iface := range c.Ifaces {
		fmt.Fprintf(&b, ".implements %s\n", iface)
	}

	for _, f := range c.FieldList {
		fmt.Fprintf(&b, "\n.field %s\n", joinDecl(f.Flags, f.Name+":"+f.Type))
	}
	for i := range c.MethodList {
		b.WriteByte('\n')
		renderMethod(&b, &c.MethodList[i])
	}
	return b.String()
}

// RenderMethod writes the canonical smali form of a single method.
func RenderMethod(m *Method) string {
	var b strings.Builder
	renderMethod(&b, m)
	return b.String()
}

func renderMethod(b *strings.Builder, m *Method) {
	fmt.Fprintf(b, ".method %s\n", joinDecl(m.Flags, m.Name+m.Signature))
	if m.Registers > 0 {
		fmt.Fprintf(b, "    .registers %d\n", m.Registers)
	}
	for _, ins := range m.Code {
		fmt.Fprintf(b, "    %s\n", ins.Text())
	}
	b.WriteString(".end method\n")
}

func joinDecl(flags []string, decl string) string {
	if len(flags) == 0 {
		return decl
	}
	return strings.Join(flags, " ") + " " + decl
}
