package dex

// Image is one bytecode container entry loaded from the archive, e.g.
// the "classes2" unit. Immutable after load; owned by the Document.
type Image struct {
	name    string
	member  string
	classes []ClassDefinition
	index   map[string]int
}

func newImage(name, member string, classes []ClassDefinition) *Image {
	im := &Image{
		name:    name,
		member:  member,
		classes: classes,
		index:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		im.index[c.Name()] = i
	}
	return im
}

// Name returns the image name, the archive member name without its
// extension ("classes", "classes2", ...).
func (im *Image) Name() string { return im.name }

// MemberName returns the archive member name the image was loaded from.
func (im *Image) MemberName() string { return im.member }

// Count returns the number of base classes in the image.
func (im *Image) Count() int { return len(im.classes) }

// Classes returns the base classes in declaration order. The returned
// slice is shared; callers must not mutate it.
func (im *Image) Classes() []ClassDefinition { return im.classes }

// Lookup returns the base definition for an identifier, if declared
// in this image.
func (im *Image) Lookup(id string) (ClassDefinition, bool) {
	i, ok := im.index[id]
	if !ok {
		return nil, false
	}
	return im.classes[i], true
}
