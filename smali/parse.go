package smali

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse assembles whole-class smali source into a Class. The grammar
// is line-oriented: one directive or instruction per line, '#' starts
// a comment, blank lines are ignored.
func Parse(text string) (*Class, error) {
	p := &parser{}
	for i, raw := range strings.Split(text, "\n") {
		line := stripComment(raw)
		if line == "" {
			continue
		}
		if err := p.line(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return p.finish()
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

type parser struct {
	class  *Class
	method *Method
}

func (p *parser) line(line string) error {
	fields := strings.Fields(line)
	directive := fields[0]

	if p.method != nil {
		switch directive {
		case ".end":
			if len(fields) < 2 || fields[1] != "method" {
				return fmt.Errorf("unexpected %q inside method", line)
			}
			p.class.MethodList = append(p.class.MethodList, *p.method)
			p.method = nil
			return nil
		case ".registers":
			if len(fields) != 2 {
				return fmt.Errorf("malformed .registers directive")
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("bad register count %q", fields[1])
			}
			p.method.Registers = n
			return nil
		default:
			if strings.HasPrefix(directive, ".") {
				return fmt.Errorf("unsupported directive %q inside method", directive)
			}
			p.method.Code = append(p.method.Code, Instruction{
				Mnemonic: directive,
				Operands: strings.TrimSpace(strings.TrimPrefix(line, directive)),
			})
			return nil
		}
	}

	switch directive {
	case ".class":
		if p.class != nil {
			return fmt.Errorf("duplicate .class directive")
		}
		if len(fields) < 2 {
			return fmt.Errorf("malformed .class directive")
		}
		name := fields[len(fields)-1]
		if !isTypeDescriptor(name) {
			return fmt.Errorf("bad class identifier %q", name)
		}
		p.class = &Class{
			ClassName:  name,
			ClassFlags: fields[1 : len(fields)-1],
		}
		return nil
	case ".super":
		if err := p.needClass(directive); err != nil {
			return err
		}
		if len(fields) != 2 || !isTypeDescriptor(fields[1]) {
			return fmt.Errorf("malformed .super directive")
		}
		p.class.Super = fields[1]
		return nil
	case ".implements":
		if err := p.needClass(directive); err != nil {
			return err
		}
		if len(fields) != 2 || !isTypeDescriptor(fields[1]) {
			return fmt.Errorf("malformed .implements directive")
		}
		p.class.Ifaces = append(p.class.Ifaces, fields[1])
		return nil
	case ".field":
		if err := p.needClass(directive); err != nil {
			return err
		}
		// .field [flags...] name:Type
		if len(fields) < 2 {
			return fmt.Errorf("malformed .field directive")
		}
		decl := fields[len(fields)-1]
		name, typ, ok := strings.Cut(decl, ":")
		if !ok || name == "" || typ == "" {
			return fmt.Errorf("bad field declaration %q", decl)
		}
		p.class.FieldList = append(p.class.FieldList, Field{
			Name:  name,
			Type:  typ,
			Flags: fields[1 : len(fields)-1],
		})
		return nil
	case ".method":
		if err := p.needClass(directive); err != nil {
			return err
		}
		// .method [flags...] name(sig)ret
		if len(fields) < 2 {
			return fmt.Errorf("malformed .method directive")
		}
		decl := fields[len(fields)-1]
		open := strings.IndexByte(decl, '(')
		if open <= 0 {
			return fmt.Errorf("bad method declaration %q", decl)
		}
		p.method = &Method{
			Name:      decl[:open],
			Signature: decl[open:],
			Flags:     fields[1 : len(fields)-1],
		}
		return nil
	case ".end":
		return fmt.Errorf("unexpected %q outside method", line)
	default:
		if strings.HasPrefix(directive, ".") {
			return fmt.Errorf("unsupported directive %q", directive)
		}
		return fmt.Errorf("instruction %q outside method body", directive)
	}
}

func (p *parser) needClass(directive string) error {
	if p.class == nil {
		return fmt.Errorf("%s before .class", directive)
	}
	return nil
}

func (p *parser) finish() (*Class, error) {
	if p.class == nil {
		return nil, fmt.Errorf("no .class directive")
	}
	if p.method != nil {
		return nil, fmt.Errorf("unterminated method %s", p.method.Name)
	}
	if p.class.Super == "" {
		return nil, fmt.Errorf("no .super directive")
	}
	return p.class, nil
}

// isTypeDescriptor checks the Lpkg/Name; identifier shape.
func isTypeDescriptor(s string) bool {
	return len(s) > 2 && s[0] == 'L' && s[len(s)-1] == ';' && !strings.ContainsAny(s[1:len(s)-1], " \t")
}
