package smali

import (
	"fmt"
	"sort"
	"strings"

	"dexedit/dex"
)

// Decompile renders classes to a readable Java-like approximation:
// declarations are translated faithfully, method bodies keep their
// instruction stream as pseudo-statements. With Deobfuscate set,
// identifiers whose simple name length falls outside
// [MinNameLen, MaxNameLen] get deterministic readable names.
func Decompile(classes []*Class, opts dex.DecompileOptions) string {
	var ren *renamer
	if opts.Deobfuscate {
		ren = newRenamer(classes, opts)
	}

	var b strings.Builder
	for i, c := range classes {
		if i > 0 {
			b.WriteByte('\n')
		}
		decompileClass(&b, c, ren)
	}
	return b.String()
}

func decompileClass(b *strings.Builder, c *Class, ren *renamer) {
	pkg, name := splitIdentifier(c.ClassName)
	if ren != nil {
		name = ren.className(c.ClassName, name)
	}
	if pkg != "" {
		fmt.Fprintf(b, "package %s;\n\n", pkg)
	}

	kind := "class"
	for _, f := range c.ClassFlags {
		if f == "interface" {
			kind = "interface"
		}
	}
	fmt.Fprintf(b, "%s %s", joinDecl(javaFlags(c.ClassFlags), kind), name)
	if c.Super != "" && c.Super != "Ljava/lang/Object;" {
		fmt.Fprintf(b, " extends %s", javaType(c.Super))
	}
	if len(c.Ifaces) > 0 {
		ifaces := make([]string, len(c.Ifaces))
		for i, iface := range c.Ifaces {
			ifaces[i] = javaType(iface)
		}
		fmt.Fprintf(b, " implements %s", strings.Join(ifaces, ", "))
	}
	b.WriteString(" {\n")

	for _, f := range c.FieldList {
		fname := f.Name
		if ren != nil {
			fname = ren.fieldName(c.ClassName, f.Name)
		}
		fmt.Fprintf(b, "    %s %s;\n", joinDecl(javaFlags(f.Flags), javaType(f.Type)), fname)
	}
	if len(c.FieldList) > 0 && len(c.MethodList) > 0 {
		b.WriteByte('\n')
	}

	for i := range c.MethodList {
		m := &c.MethodList[i]
		mname := m.Name
		if ren != nil {
			mname = ren.methodName(c.ClassName, m.Name)
		}
		params, ret := splitSignature(m.Signature)
		switch m.Name {
		case "<init>":
			fmt.Fprintf(b, "    %s(%s) {\n", joinDecl(javaFlags(m.Flags), name), params)
		case "<clinit>":
			b.WriteString("    static {\n")
		default:
			decl := joinDecl(javaFlags(m.Flags), ret) + " " + mname
			fmt.Fprintf(b, "    %s(%s) {\n", decl, params)
		}
		for _, ins := range m.Code {
			fmt.Fprintf(b, "        // %s\n", ins.Text())
		}
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")
}

// splitIdentifier breaks Lcom/example/Main; into a java package and a
// simple name.
func splitIdentifier(id string) (pkg, name string) {
	inner := strings.TrimSuffix(strings.TrimPrefix(id, "L"), ";")
	if i := strings.LastIndexByte(inner, '/'); i >= 0 {
		return strings.ReplaceAll(inner[:i], "/", "."), inner[i+1:]
	}
	return "", inner
}

// javaType translates a type descriptor to java source notation.
func javaType(desc string) string {
	if strings.HasPrefix(desc, "[") {
		return javaType(desc[1:]) + "[]"
	}
	switch desc {
	case "V":
		return "void"
	case "Z":
		return "boolean"
	case "B":
		return "byte"
	case "S":
		return "short"
	case "C":
		return "char"
	case "I":
		return "int"
	case "J":
		return "long"
	case "F":
		return "float"
	case "D":
		return "double"
	}
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		pkg, name := splitIdentifier(desc)
		if pkg == "java.lang" || pkg == "" {
			return name
		}
		return pkg + "." + name
	}
	return desc
}

// splitSignature turns (ILjava/lang/String;)V into parameter and
// return renderings.
func splitSignature(sig string) (params, ret string) {
	inner := sig
	if i := strings.IndexByte(sig, ')'); i >= 0 {
		inner = strings.TrimPrefix(sig[:i], "(")
		ret = javaType(sig[i+1:])
	}
	var parts []string
	for n := 0; inner != ""; n++ {
		desc, rest := nextDescriptor(inner)
		if desc == "" {
			break
		}
		parts = append(parts, fmt.Sprintf("%s p%d", javaType(desc), n))
		inner = rest
	}
	return strings.Join(parts, ", "), ret
}

func nextDescriptor(s string) (desc, rest string) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return "", ""
	}
	if s[i] == 'L' {
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return "", ""
		}
		return s[:i+end+1], s[i+end+1:]
	}
	return s[:i+1], s[i+1:]
}

// javaFlags filters access flags to those meaningful in java source.
func javaFlags(flags []string) []string {
	var out []string
	for _, f := range flags {
		switch f {
		case "public", "protected", "private", "static", "final", "abstract", "synchronized", "native", "volatile", "transient":
			out = append(out, f)
		}
	}
	return out
}

// renamer assigns deterministic readable names to obfuscated
// identifiers. Renames are keyed on the original names and numbered
// in sorted order, so the same input always yields the same output.
type renamer struct {
	min, max int
	classes  map[string]string
	members  map[string]string // "<class>\x00m\x00<name>" or "...f..."
}

func newRenamer(classes []*Class, opts dex.DecompileOptions) *renamer {
	min, max := opts.MinNameLen, opts.MaxNameLen
	if min <= 0 {
		min = 2
	}
	if max <= 0 {
		max = 64
	}
	r := &renamer{min: min, max: max, classes: map[string]string{}, members: map[string]string{}}

	var clsIDs, mthKeys, fldKeys []string
	for _, c := range classes {
		if _, simple := splitIdentifier(c.ClassName); r.obfuscated(simple) {
			clsIDs = append(clsIDs, c.ClassName)
		}
		for _, m := range c.MethodList {
			if !strings.HasPrefix(m.Name, "<") && r.obfuscated(m.Name) {
				mthKeys = append(mthKeys, memberKey(c.ClassName, 'm', m.Name))
			}
		}
		for _, f := range c.FieldList {
			if r.obfuscated(f.Name) {
				fldKeys = append(fldKeys, memberKey(c.ClassName, 'f', f.Name))
			}
		}
	}
	sort.Strings(clsIDs)
	sort.Strings(mthKeys)
	sort.Strings(fldKeys)
	for i, id := range clsIDs {
		r.classes[id] = fmt.Sprintf("Cls%04d", i)
	}
	for i, k := range mthKeys {
		r.members[k] = fmt.Sprintf("mth%04d", i)
	}
	for i, k := range fldKeys {
		r.members[k] = fmt.Sprintf("fld%04d", i)
	}
	return r
}

func (r *renamer) obfuscated(name string) bool {
	return len(name) < r.min || len(name) > r.max
}

func memberKey(class string, kind byte, name string) string {
	return class + "\x00" + string(kind) + "\x00" + name
}

func (r *renamer) className(id, simple string) string {
	if renamed, ok := r.classes[id]; ok {
		return renamed
	}
	return simple
}

func (r *renamer) methodName(class, name string) string {
	if renamed, ok := r.members[memberKey(class, 'm', name)]; ok {
		return renamed
	}
	return name
}

func (r *renamer) fieldName(class, name string) string {
	if renamed, ok := r.members[memberKey(class, 'f', name)]; ok {
		return renamed
	}
	return name
}
