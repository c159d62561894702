package dex

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"
)

// imageMemberPattern matches root-level bytecode image members:
// classes.dex, classes2.dex, classes3.dex, ...
var imageMemberPattern = regexp.MustCompile(`^classes[0-9]*\.dex$`)

func isImageMember(name string) bool {
	return !strings.Contains(name, "/") && imageMemberPattern.MatchString(name)
}

func imageNameOf(member string) string {
	return strings.TrimSuffix(member, path.Ext(member))
}

// Document is the editable bytecode document for one session: the
// loaded images, the modification overlay, the undo/redo ledger and
// the checkpoint store. It replaces any ambient singleton state; one
// command at a time reads and mutates it.
type Document struct {
	codec Codec

	archivePath string
	images      []*Image
	byMember    map[string]*Image
	resolveIdx  map[string]*Image // identifier -> owning image, last loaded wins
	anomalies   []string          // identifiers declared in more than one image

	overlay     *Overlay
	history     *History
	checkpoints *CheckpointStore

	historyCap     int
	autoCheckpoint bool
}

// Option configures a Document.
type Option func(*Document)

// WithHistoryCap sets the undo/redo ledger bound.
func WithHistoryCap(n int) Option {
	return func(d *Document) { d.historyCap = n }
}

// WithAutoCheckpoint enables automatic checkpoints before mutations.
func WithAutoCheckpoint(on bool) Option {
	return func(d *Document) { d.autoCheckpoint = on }
}

// NewDocument creates a closed document bound to a codec.
func NewDocument(codec Codec, opts ...Option) *Document {
	d := &Document{
		codec:      codec,
		historyCap: DefaultHistoryCap,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.overlay = NewOverlay()
	d.history = NewHistory(d.historyCap, codec, d.overlay)
	d.checkpoints = NewCheckpointStore(d.overlay)
	return d
}

// IsOpen reports whether an archive is loaded.
func (d *Document) IsOpen() bool { return d.archivePath != "" }

// Path returns the source archive path, empty when closed.
func (d *Document) Path() string { return d.archivePath }

// Codec returns the codec the document was built with.
func (d *Document) Codec() Codec { return d.codec }

// Overlay exposes the live overlay for read-side collaborators.
func (d *Document) Overlay() *Overlay { return d.overlay }

// Checkpoints exposes the checkpoint store.
func (d *Document) Checkpoints() *CheckpointStore { return d.checkpoints }

// ImageCount is one image's entry in a load report.
type ImageCount struct {
	Name    string
	Classes int
}

// LoadReport summarizes a successful open.
type LoadReport struct {
	Path      string
	Images    []ImageCount
	Anomalies []string
}

// Open loads the archive at path, replacing any prior document
// wholesale. All images decode before the swap: a decode failure
// leaves the previously open document untouched. A successful open
// clears the overlay, the history and the checkpoints.
func (d *Document) Open(archivePath string) (*LoadReport, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer r.Close()

	var images []*Image
	resolveIdx := make(map[string]*Image)
	var anomalies []string
	seenDup := make(map[string]bool)

	for _, f := range r.File {
		if !isImageMember(f.Name) {
			continue
		}
		data, err := readMember(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		classes, err := d.codec.DecodeImage(data)
		if err != nil {
			return nil, &CodecError{Op: "decode", Class: f.Name, Err: err}
		}
		im := newImage(imageNameOf(f.Name), f.Name, classes)
		images = append(images, im)
		for _, c := range classes {
			id := c.Name()
			if _, dup := resolveIdx[id]; dup && !seenDup[id] {
				seenDup[id] = true
				anomalies = append(anomalies, id)
			}
			resolveIdx[id] = im
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("archive %s: %w: no bytecode images", archivePath, ErrNotFound)
	}
	sort.Strings(anomalies)

	d.archivePath = archivePath
	d.images = images
	d.resolveIdx = resolveIdx
	d.anomalies = anomalies
	d.byMember = make(map[string]*Image, len(images))
	for _, im := range images {
		d.byMember[im.MemberName()] = im
	}
	d.overlay.Clear()
	d.history.Clear()
	d.checkpoints.Clear()

	report := &LoadReport{Path: archivePath, Anomalies: anomalies}
	for _, im := range images {
		report.Images = append(report.Images, ImageCount{Name: im.Name(), Classes: im.Count()})
	}
	return report, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Close tears the document down: images, overlay, history and
// checkpoints are all released.
func (d *Document) Close() {
	d.archivePath = ""
	d.images = nil
	d.byMember = nil
	d.resolveIdx = nil
	d.anomalies = nil
	d.overlay.Clear()
	d.history.Clear()
	d.checkpoints.Clear()
}

// Reset discards all pending edits and the undo/redo ledger while
// keeping the document open. Checkpoints are named save points the
// caller manages independently; they survive a reset.
func (d *Document) Reset() error {
	if !d.IsOpen() {
		return ErrNoDocumentOpen
	}
	d.overlay.Clear()
	d.history.Clear()
	return nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve returns the effective definition for an identifier:
// replacement first, deletion hides, otherwise the base definition of
// the owning image.
func (d *Document) Resolve(id string) (ClassDefinition, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	if d.overlay.IsDeleted(id) {
		return nil, fmt.Errorf("class %s is deleted: %w", id, ErrNotFound)
	}
	if def, ok := d.overlay.Replacement(id); ok {
		return def, nil
	}
	if im, ok := d.resolveIdx[id]; ok {
		if def, ok := im.Lookup(id); ok {
			return def, nil
		}
	}
	return nil, fmt.Errorf("class %s: %w", id, ErrNotFound)
}

// resolveBase returns the unmodified base definition, ignoring the
// overlay entirely.
func (d *Document) resolveBase(id string) (ClassDefinition, bool) {
	im, ok := d.resolveIdx[id]
	if !ok {
		return nil, false
	}
	return im.Lookup(id)
}

// owningImageName returns the image an identifier resolves to, or ""
// for classes that exist only in the overlay.
func (d *Document) owningImageName(id string) string {
	if im, ok := d.resolveIdx[id]; ok {
		return im.Name()
	}
	return ""
}

// ClassSummary is one row of an enumeration.
type ClassSummary struct {
	ID       string
	Image    string
	Methods  int
	Fields   int
	Modified bool
}

// Enumerate lists the resolved view in image-then-declaration order,
// optionally filtered to a single image name. Deleted classes are
// hidden; classes introduced by edits (present only in the overlay)
// follow the images.
func (d *Document) Enumerate(imageFilter string) ([]ClassSummary, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	if imageFilter != "" {
		if _, ok := d.imageByName(imageFilter); !ok {
			return nil, fmt.Errorf("image %s: %w", imageFilter, ErrNotFound)
		}
	}

	var out []ClassSummary
	seen := make(map[string]bool)
	for _, im := range d.images {
		if imageFilter != "" && im.Name() != imageFilter {
			continue
		}
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
			modified := false
			if rep, ok := d.overlay.Replacement(id); ok {
				def = rep
				modified = true
			}
			out = append(out, ClassSummary{
				ID:       id,
				Image:    d.owningImageName(id),
				Methods:  len(def.Methods()),
				Fields:   len(def.Fields()),
				Modified: modified,
			})
		}
	}
	if imageFilter == "" {
		for _, id := range d.overlay.ReplacedIDs() {
			if seen[id] {
				continue
			}
			def, _ := d.overlay.Replacement(id)
			out = append(out, ClassSummary{
				ID:       id,
				Methods:  len(def.Methods()),
				Fields:   len(def.Fields()),
				Modified: true,
			})
		}
	}
	return out, nil
}

func (d *Document) imageByName(name string) (*Image, bool) {
	for _, im := range d.images {
		if im.Name() == name {
			return im, true
		}
	}
	return nil, false
}

// Anomalies returns identifiers declared by more than one image.
func (d *Document) Anomalies() []string {
	return append([]string(nil), d.anomalies...)
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// Text renders the resolved class to its textual source form.
func (d *Document) Text(id string) (string, error) {
	def, err := d.Resolve(id)
	if err != nil {
		return "", err
	}
	text, err := d.codec.Disassemble(def)
	if err != nil {
		return "", &CodecError{Op: "disassemble", Class: id, Err: err}
	}
	return text, nil
}

// MemberText renders a single member of the resolved class.
func (d *Document) MemberText(id, member string) (string, error) {
	def, err := d.Resolve(id)
	if err != nil {
		return "", err
	}
	text, err := d.codec.DisassembleMember(def, member)
	if err != nil {
		return "", err
	}
	return text, nil
}

// Page is one bounded slice of a rendered class.
type Page struct {
	Text    string
	Offset  int
	Length  int
	Total   int
	HasMore bool
}

// PagedText renders the full class once and returns the substring at
// [offset, offset+limit). Offsets are character positions; an offset
// past the end is a contract violation. A limit of zero or less
// returns everything from the offset.
func (d *Document) PagedText(id string, offset, limit int) (*Page, error) {
	text, err := d.Text(id)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > len(text) {
		return nil, fmt.Errorf("%w: offset %d out of range [0, %d]", ErrInvalidArgument, offset, len(text))
	}
	end := len(text)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	slice := text[offset:end]
	return &Page{
		Text:    slice,
		Offset:  offset,
		Length:  len(slice),
		Total:   len(text),
		HasMore: end < len(text),
	}, nil
}

// ---------------------------------------------------------------------------
// Mutation
// ---------------------------------------------------------------------------

// Modify assembles text and installs it as the whole-class replacement
// for id, recording the edit in the ledger. The operation either fully
// succeeds or leaves every component untouched: assembly happens
// before any state changes.
func (d *Document) Modify(id, text string) error {
	if !d.IsOpen() {
		return ErrNoDocumentOpen
	}
	if id == "" {
		return fmt.Errorf("%w: class identifier is empty", ErrInvalidArgument)
	}
	def, err := d.codec.Assemble(text)
	if err != nil {
		return &CodecError{Op: "assemble", Class: id, Err: err}
	}
	if def.Name() != id {
		return fmt.Errorf("%w: source declares %s, not %s", ErrInvalidArgument, def.Name(), id)
	}

	prior, err := d.priorText(id)
	if err != nil {
		return err
	}

	if d.autoCheckpoint {
		d.checkpoints.CaptureAuto()
	}
	d.overlay.Replace(id, def)
	d.history.Record(HistoryEntry{
		Action:    ActionModify,
		Class:     id,
		PriorText: prior,
		NewText:   &text,
	})
	return nil
}

// priorText renders the replacement the overlay holds for id, or nil
// when none exists. Base definitions are deliberately not captured:
// undoing back to the base view drops the overlay entry instead of
// installing an assembled equivalent, which keeps the base class's
// original record bytes intact for export.
func (d *Document) priorText(id string) (*string, error) {
	rep, ok := d.overlay.Replacement(id)
	if !ok {
		return nil, nil
	}
	text, err := d.codec.Disassemble(rep)
	if err != nil {
		return nil, &CodecError{Op: "disassemble", Class: id, Err: err}
	}
	return &text, nil
}

// ReplaceText performs a textual find/replace inside the resolved
// class source and installs the result as a modification. Replaces the
// first occurrence unless all is set. Returns the number of
// occurrences replaced and the total number found.
func (d *Document) ReplaceText(id, old, new string, all bool) (replaced, total int, err error) {
	if old == "" {
		return 0, 0, fmt.Errorf("%w: search string is empty", ErrInvalidArgument)
	}
	text, err := d.Text(id)
	if err != nil {
		return 0, 0, err
	}
	total = strings.Count(text, old)
	if total == 0 {
		return 0, 0, fmt.Errorf("string not found in %s: %w", id, ErrNotFound)
	}
	n := 1
	if all {
		n = -1
	}
	updated := strings.Replace(text, old, new, n)
	if err := d.Modify(id, updated); err != nil {
		return 0, total, err
	}
	if all {
		return total, total, nil
	}
	return 1, total, nil
}

// Delete marks a class deleted, recording the edit. Deleting an
// identifier with no base definition is still recorded so a stray
// replacement cannot resurface.
func (d *Document) Delete(id string) error {
	if !d.IsOpen() {
		return ErrNoDocumentOpen
	}
	if id == "" {
		return fmt.Errorf("%w: class identifier is empty", ErrInvalidArgument)
	}

	// Only an overlay replacement needs to be preserved for undo; a
	// plain base class comes back by clearing the deletion mark.
	var prior *string
	if rep, ok := d.overlay.Replacement(id); ok {
		text, err := d.codec.Disassemble(rep)
		if err != nil {
			return &CodecError{Op: "disassemble", Class: id, Err: err}
		}
		prior = &text
	}

	if d.autoCheckpoint {
		d.checkpoints.CaptureAuto()
	}
	d.overlay.Delete(id)
	d.history.Record(HistoryEntry{
		Action:    ActionDelete,
		Class:     id,
		PriorText: prior,
	})
	return nil
}

// Undo reverts the most recent recorded edit.
func (d *Document) Undo() (*HistoryEntry, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	return d.history.Undo()
}

// Redo re-applies the next undone edit.
func (d *Document) Redo() (*HistoryEntry, error) {
	if !d.IsOpen() {
		return nil, ErrNoDocumentOpen
	}
	return d.history.Redo()
}

// History exposes the ledger.
func (d *Document) History() *History { return d.history }

// SetAutoCheckpoint toggles automatic checkpoints before mutations.
func (d *Document) SetAutoCheckpoint(on bool) { d.autoCheckpoint = on }

// AutoCheckpoint reports whether automatic checkpoints are enabled.
func (d *Document) AutoCheckpoint() bool { return d.autoCheckpoint }

// Checkpoint captures a named snapshot of the overlay.
func (d *Document) Checkpoint(name string) error {
	if !d.IsOpen() {
		return ErrNoDocumentOpen
	}
	return d.checkpoints.Capture(name)
}

// RestoreCheckpoint replaces the live overlay with a named snapshot.
func (d *Document) RestoreCheckpoint(name string) error {
	if !d.IsOpen() {
		return ErrNoDocumentOpen
	}
	return d.checkpoints.Restore(name)
}

// ---------------------------------------------------------------------------
// Decompilation
// ---------------------------------------------------------------------------

// Decompile renders the resolved class to the higher-level form.
func (d *Document) Decompile(id string, opts DecompileOptions) (string, error) {
	def, err := d.Resolve(id)
	if err != nil {
		return "", err
	}
	text, err := d.codec.Decompile([]ClassDefinition{def}, opts)
	if err != nil {
		return "", &CodecError{Op: "decompile", Class: id, Err: err}
	}
	return text, nil
}

// DecompilePackage renders every resolved class matching a package
// pattern ("com.example.*" or an identifier prefix), up to maxClasses.
// Returns the rendering, the identifiers included, and whether the
// match set was truncated.
func (d *Document) DecompilePackage(pattern string, maxClasses int, opts DecompileOptions) (string, []string, bool, error) {
	if !d.IsOpen() {
		return "", nil, false, ErrNoDocumentOpen
	}
	if pattern == "" {
		return "", nil, false, fmt.Errorf("%w: package pattern is empty", ErrInvalidArgument)
	}
	if maxClasses <= 0 {
		maxClasses = 20
	}
	prefix := packagePrefix(pattern)

	var defs []ClassDefinition
	var ids []string
	truncated := false
	d.eachResolved(func(_ string, def ClassDefinition) {
		if !strings.HasPrefix(def.Name(), prefix) {
			return
		}
		if len(defs) >= maxClasses {
			truncated = true
			return
		}
		defs = append(defs, def)
		ids = append(ids, def.Name())
	})
	if len(defs) == 0 {
		return "", nil, false, fmt.Errorf("no classes match %q: %w", pattern, ErrNotFound)
	}
	text, err := d.codec.Decompile(defs, opts)
	if err != nil {
		return "", nil, false, &CodecError{Op: "decompile", Class: prefix, Err: err}
	}
	return text, ids, truncated, nil
}

// packagePrefix converts a java-style package pattern to an identifier
// prefix: "com.example.*" -> "Lcom/example/".
func packagePrefix(pattern string) string {
	p := strings.TrimSuffix(pattern, "*")
	p = strings.ReplaceAll(p, ".", "/")
	if !strings.HasPrefix(p, "L") {
		p = "L" + p
	}
	return p
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is a point-in-time view of the session.
type Status struct {
	Open           bool
	Path           string
	Images         []ImageCount
	Replaced       int
	Deleted        int
	HistoryLen     int
	HistoryCursor  int
	HistoryCap     int
	Checkpoints    int
	AutoCheckpoint bool
}

// Status reports the current session state.
func (d *Document) Status() Status {
	st := Status{
		Open:           d.IsOpen(),
		Path:           d.archivePath,
		HistoryLen:     d.history.Len(),
		HistoryCursor:  d.history.Cursor(),
		HistoryCap:     d.history.Cap(),
		Checkpoints:    d.checkpoints.Len(),
		AutoCheckpoint: d.autoCheckpoint,
	}
	st.Replaced, st.Deleted = d.overlay.Counts()
	for _, im := range d.images {
		st.Images = append(st.Images, ImageCount{Name: im.Name(), Classes: im.Count()})
	}
	return st
}
