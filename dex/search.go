package dex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SearchResult is one hit of a content search. Member is empty for
// class-level matches; Text carries the matching instruction or
// identifier.
type SearchResult struct {
	Class  string
	Member string
	Image  string
	Text   string
}

// eachResolved walks the resolved view of the document: every base
// class in image load order with overlay replacements substituted and
// deletions skipped, then classes existing only in the overlay, sorted.
func (d *Document) eachResolved(fn func(image string, def ClassDefinition)) {
	seen := make(map[string]bool)
	for _, im := range d.images {
		for _, c := range im.Classes() {
			id := c.Name()
			if seen[id] {
				continue
			}
			seen[id] = true
			if d.overlay.IsDeleted(id) {
				continue
			}
			def := c
			if rep, ok := d.overlay.Replacement(id); ok {
				def = rep
			}
			fn(d.owningImageName(id), def)
		}
	}
	for _, id := range d.overlay.ReplacedIDs() {
		if seen[id] {
			continue
		}
		def, _ := d.overlay.Replacement(id)
		fn("", def)
	}
}

// SearchClass finds classes whose identifier matches a
// case-insensitive regular expression.
func (d *Document) SearchClass(pattern string) ([]SearchResult, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", ErrInvalidArgument, pattern, err)
	}
	var out []SearchResult
	d.eachResolved(func(image string, def ClassDefinition) {
		if re.MatchString(def.Name()) {
			out = append(out, SearchResult{Class: def.Name(), Image: image, Text: def.Name()})
		}
	})
	return out, nil
}

// FindSubclasses finds classes whose direct superclass or implemented
// interface list names target exactly.
func (d *Document) FindSubclasses(target string) ([]SearchResult, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	if target == "" {
		return nil, fmt.Errorf("%w: target class is empty", ErrInvalidArgument)
	}
	var out []SearchResult
	d.eachResolved(func(image string, def ClassDefinition) {
		if def.SuperName() == target {
			out = append(out, SearchResult{Class: def.Name(), Image: image, Text: "extends " + target})
			return
		}
		for _, iface := range def.Interfaces() {
			if iface == target {
				out = append(out, SearchResult{Class: def.Name(), Image: image, Text: "implements " + target})
				return
			}
		}
	})
	return out, nil
}

// SearchStrings finds instructions whose text contains needle.
func (d *Document) SearchStrings(needle string) ([]SearchResult, error) {
	return d.searchInstructions(needle, func(ins Instruction, needle string) bool {
		return strings.Contains(ins.Text, needle)
	})
}

// SearchMethodCalls finds invoke instructions whose text contains
// needle, typically a target method signature fragment.
func (d *Document) SearchMethodCalls(needle string) ([]SearchResult, error) {
	return d.searchInstructions(needle, func(ins Instruction, needle string) bool {
		return ins.Kind == OpInvoke && strings.Contains(ins.Text, needle)
	})
}

// SearchFieldRefs finds field access instructions whose text contains
// needle.
func (d *Document) SearchFieldRefs(needle string) ([]SearchResult, error) {
	return d.searchInstructions(needle, func(ins Instruction, needle string) bool {
		return ins.Kind == OpFieldAccess && strings.Contains(ins.Text, needle)
	})
}

func (d *Document) searchInstructions(needle string, match func(Instruction, string) bool) ([]SearchResult, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	if needle == "" {
		return nil, fmt.Errorf("%w: search string is empty", ErrInvalidArgument)
	}
	var out []SearchResult
	d.eachResolved(func(image string, def ClassDefinition) {
		for _, m := range def.Methods() {
			for _, ins := range m.Instructions {
				if match(ins, needle) {
					out = append(out, SearchResult{
						Class:  def.Name(),
						Member: m.Name + m.Signature,
						Image:  image,
						Text:   ins.Text,
					})
				}
			}
		}
	})
	return out, nil
}

// SearchInteger finds constant-load instructions carrying value,
// matching either its decimal or hexadecimal spelling as a whole
// token. Arithmetic on other instruction kinds is not inspected.
func (d *Document) SearchInteger(value int64) ([]SearchResult, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	dec := strconv.FormatInt(value, 10)
	var hex string
	if value < 0 {
		hex = "-0x" + strconv.FormatInt(-value, 16)
	} else {
		hex = "0x" + strconv.FormatInt(value, 16)
	}

	var out []SearchResult
	d.eachResolved(func(image string, def ClassDefinition) {
		for _, m := range def.Methods() {
			for _, ins := range m.Instructions {
				if ins.Kind != OpConstLoad {
					continue
				}
				if containsToken(ins.Text, dec) || containsToken(ins.Text, hex) {
					out = append(out, SearchResult{
						Class:  def.Name(),
						Member: m.Name + m.Signature,
						Image:  image,
						Text:   ins.Text,
					})
				}
			}
		}
	})
	return out, nil
}

// containsToken reports whether tok occurs in s bounded by
// non-alphanumeric characters, so 42 does not match 0x420 or 1427.
func containsToken(s, tok string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], tok)
		if i < 0 {
			return false
		}
		i += from
		before := i == 0 || !isTokenChar(s[i-1])
		after := i+len(tok) == len(s) || !isTokenChar(s[i+len(tok)])
		if before && after {
			return true
		}
		from = i + 1
	}
}

func isTokenChar(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
