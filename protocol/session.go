package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"dexedit/config"
	"dexedit/dex"
	"dexedit/workspace"

	_ "github.com/tliron/commonlog/simple"
)

// Session owns one editing session: the document, its configuration
// and the lazily opened workspace store. Dispatch serializes access,
// so both transports can share a session.
type Session struct {
	mu    sync.Mutex
	doc   *dex.Document
	cfg   *config.Config
	store *workspace.Store
	log   commonlog.Logger
}

// NewSession creates a session around a document.
func NewSession(doc *dex.Document, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		doc: doc,
		cfg: cfg,
		log: commonlog.GetLogger("dexedit.protocol"),
	}
}

// Close releases session resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Close()
	if s.store != nil {
		err := s.store.Close()
		s.store = nil
		return err
	}
	return nil
}

type handler struct {
	minArgs int
	maxArgs int // -1 for unbounded
	usage   string
	run     func(s *Session, args []string) (any, error)
}

// handlers is the command table. Keys include the original protocol's
// snake_case names as aliases.
var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		"open":      {1, 1, "open <archive>", (*Session).cmdOpen},
		"close":     {0, 0, "close", (*Session).cmdClose},
		"reset":     {0, 0, "reset", (*Session).cmdReset},
		"status":    {0, 0, "status", (*Session).cmdStatus},
		"list":      {0, 1, "list [image]", (*Session).cmdList},
		"summary":   {1, 1, "summary <class>", (*Session).cmdSummary},
		"classInfo": {1, 1, "classInfo <class>", (*Session).cmdClassInfo},

		"get":       {1, 1, "get <class>", (*Session).cmdGet},
		"getPaged":  {2, 3, "getPaged <class> <offset> [limit]", (*Session).cmdGetPaged},
		"getMethod": {2, 2, "getMethod <class> <method>", (*Session).cmdGetMethod},

		"toJava":           {1, 1, "toJava <class>", (*Session).cmdToJava},
		"deobfuscate":      {1, 1, "deobfuscate <class>", (*Session).cmdDeobfuscate},
		"decompilePackage": {1, 2, "decompilePackage <pattern> [max]", (*Session).cmdDecompilePackage},

		"modify":      {2, 2, "modify <class> <source>", (*Session).cmdModify},
		"replace":     {3, 4, "replace <class> <old> <new> [all]", (*Session).cmdReplace},
		"deleteClass": {1, 1, "deleteClass <class>", (*Session).cmdDeleteClass},
		"save":        {0, 1, "save [path]", (*Session).cmdSave},

		"searchClass":       {1, 1, "searchClass <pattern>", (*Session).cmdSearchClass},
		"searchString":      {1, 1, "searchString <needle>", (*Session).cmdSearchString},
		"searchMethodCalls": {1, 1, "searchMethodCalls <needle>", (*Session).cmdSearchMethodCalls},
		"searchFieldRefs":   {1, 1, "searchFieldRefs <needle>", (*Session).cmdSearchFieldRefs},
		"searchInteger":     {1, 1, "searchInteger <value>", (*Session).cmdSearchInteger},
		"findSubclasses":    {1, 1, "findSubclasses <class>", (*Session).cmdFindSubclasses},

		"checkpoint":        {1, 1, "checkpoint <name>", (*Session).cmdCheckpoint},
		"restore":           {1, 1, "restore <name>", (*Session).cmdRestore},
		"listCheckpoints":   {0, 0, "listCheckpoints", (*Session).cmdListCheckpoints},
		"deleteCheckpoint":  {1, 1, "deleteCheckpoint <name>", (*Session).cmdDeleteCheckpoint},
		"exportCheckpoint":  {1, 1, "exportCheckpoint <name>", (*Session).cmdExportCheckpoint},
		"setAutoCheckpoint": {1, 1, "setAutoCheckpoint <on|off>", (*Session).cmdSetAutoCheckpoint},

		"undo":    {0, 0, "undo", (*Session).cmdUndo},
		"redo":    {0, 0, "redo", (*Session).cmdRedo},
		"history": {0, 0, "history", (*Session).cmdHistory},
	}

	aliases := map[string]string{
		"list_classes":    "list",
		"get_class":       "get",
		"get_paged":       "getPaged",
		"get_method":      "getMethod",
		"modify_class":    "modify",
		"delete_class":    "deleteClass",
		"search_class":    "searchClass",
		"search_string":   "searchString",
		"to_java":         "toJava",
		"deobf":           "deobfuscate",
		"batch_decompile": "decompilePackage",
		"class_info":      "classInfo",
		"find_subclasses": "findSubclasses",
	}
	for alias, target := range aliases {
		handlers[alias] = handlers[target]
	}
}

// Dispatch runs one command and returns its response. No-op undo and
// redo report success with a message rather than an error.
func (s *Session) Dispatch(command string, args []string) Response {
	h, ok := handlers[command]
	if !ok {
		return failure("InvalidArgument", fmt.Errorf("unknown command %q", command))
	}
	if len(args) < h.minArgs || (h.maxArgs >= 0 && len(args) > h.maxArgs) {
		return failure("InvalidArgument", fmt.Errorf("usage: %s", h.usage))
	}

	s.mu.Lock()
	data, err := h.run(s, args)
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, dex.ErrNothingToUndo) || errors.Is(err, dex.ErrNothingToRedo) {
			return Response{Success: true, Message: err.Error()}
		}
		s.log.Errorf("%s: %s", command, err.Error())
		return failure(classify(err), err)
	}
	return Response{Success: true, Data: data}
}

// classify maps an error to its protocol code.
func classify(err error) string {
	var ce *dex.CodecError
	switch {
	case errors.Is(err, dex.ErrNoDocumentOpen):
		return "NoDocumentOpen"
	case errors.Is(err, dex.ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, dex.ErrNotFound):
		return "NotFound"
	case errors.As(err, &ce):
		switch ce.Op {
		case "decode":
			return "DecodeError"
		case "encode":
			return "EncodeError"
		case "assemble":
			return "AssembleError"
		case "disassemble":
			return "DisassembleError"
		case "decompile":
			return "DecompileError"
		}
		return "CodecError"
	default:
		return "IOError"
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (s *Session) cmdOpen(args []string) (any, error) {
	report, err := s.doc.Open(args[0])
	if err != nil {
		return nil, err
	}
	s.log.Infof("opened %s (%d images)", report.Path, len(report.Images))
	return map[string]any{
		"path":      report.Path,
		"images":    imageCounts(report.Images),
		"anomalies": report.Anomalies,
	}, nil
}

func (s *Session) cmdClose(args []string) (any, error) {
	s.doc.Close()
	return map[string]any{}, nil
}

func (s *Session) cmdReset(args []string) (any, error) {
	if err := s.doc.Reset(); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (s *Session) cmdStatus(args []string) (any, error) {
	st := s.doc.Status()
	return map[string]any{
		"open":           st.Open,
		"path":           st.Path,
		"images":         imageCounts(st.Images),
		"replaced":       st.Replaced,
		"deleted":        st.Deleted,
		"historyLength":  st.HistoryLen,
		"historyCursor":  st.HistoryCursor,
		"historyCap":     st.HistoryCap,
		"checkpoints":    st.Checkpoints,
		"autoCheckpoint": st.AutoCheckpoint,
	}, nil
}

func imageCounts(images []dex.ImageCount) []map[string]any {
	out := make([]map[string]any, len(images))
	for i, im := range images {
		out[i] = map[string]any{"name": im.Name, "classes": im.Classes}
	}
	return out
}

// ---------------------------------------------------------------------------
// Browsing
// ---------------------------------------------------------------------------

func (s *Session) cmdList(args []string) (any, error) {
	filter := ""
	if len(args) == 1 {
		filter = args[0]
	}
	classes, err := s.doc.Enumerate(filter)
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, len(classes))
	for i, c := range classes {
		rows[i] = map[string]any{
			"id":       c.ID,
			"image":    c.Image,
			"methods":  c.Methods,
			"fields":   c.Fields,
			"modified": c.Modified,
		}
	}
	return map[string]any{"classes": rows, "count": len(rows)}, nil
}

func (s *Session) cmdSummary(args []string) (any, error) {
	def, err := s.doc.Resolve(args[0])
	if err != nil {
		return nil, err
	}
	_, modified := s.doc.Overlay().Replacement(args[0])
	return map[string]any{
		"id":         def.Name(),
		"super":      def.SuperName(),
		"interfaces": def.Interfaces(),
		"flags":      def.AccessFlags(),
		"methods":    len(def.Methods()),
		"fields":     len(def.Fields()),
		"modified":   modified,
	}, nil
}

func (s *Session) cmdClassInfo(args []string) (any, error) {
	def, err := s.doc.Resolve(args[0])
	if err != nil {
		return nil, err
	}
	fields := make([]map[string]any, 0, len(def.Fields()))
	for _, f := range def.Fields() {
		fields = append(fields, map[string]any{"name": f.Name, "type": f.Type})
	}
	methods := make([]map[string]any, 0, len(def.Methods()))
	for _, m := range def.Methods() {
		methods = append(methods, map[string]any{
			"name":         m.Name,
			"signature":    m.Signature,
			"instructions": len(m.Instructions),
		})
	}
	return map[string]any{
		"id":         def.Name(),
		"super":      def.SuperName(),
		"interfaces": def.Interfaces(),
		"flags":      def.AccessFlags(),
		"fields":     fields,
		"methods":    methods,
	}, nil
}

func (s *Session) cmdGet(args []string) (any, error) {
	text, err := s.doc.Text(args[0])
	if err != nil {
		return nil, err
	}
	return map[string]any{"smali": text}, nil
}

func (s *Session) cmdGetPaged(args []string) (any, error) {
	offset, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad offset %q", dex.ErrInvalidArgument, args[1])
	}
	limit := s.cfg.Paging.DefaultLimit
	if len(args) == 3 {
		limit, err = strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad limit %q", dex.ErrInvalidArgument, args[2])
		}
	}
	page, err := s.doc.PagedText(args[0], offset, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"smali":       page.Text,
		"offset":      page.Offset,
		"length":      page.Length,
		"totalLength": page.Total,
		"hasMore":     page.HasMore,
	}, nil
}

func (s *Session) cmdGetMethod(args []string) (any, error) {
	text, err := s.doc.MemberText(args[0], args[1])
	if err != nil {
		return nil, err
	}
	return map[string]any{"smali": text}, nil
}

// ---------------------------------------------------------------------------
// Decompilation
// ---------------------------------------------------------------------------

func (s *Session) decompileOpts(deobfuscate bool) dex.DecompileOptions {
	return dex.DecompileOptions{
		Deobfuscate: deobfuscate,
		MinNameLen:  s.cfg.Decompile.MinNameLen,
		MaxNameLen:  s.cfg.Decompile.MaxNameLen,
	}
}

func (s *Session) cmdToJava(args []string) (any, error) {
	text, err := s.doc.Decompile(args[0], s.decompileOpts(false))
	if err != nil {
		return nil, err
	}
	return map[string]any{"java": text}, nil
}

func (s *Session) cmdDeobfuscate(args []string) (any, error) {
	text, err := s.doc.Decompile(args[0], s.decompileOpts(true))
	if err != nil {
		return nil, err
	}
	return map[string]any{"java": text}, nil
}

func (s *Session) cmdDecompilePackage(args []string) (any, error) {
	max := s.cfg.Decompile.BatchMax
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad class cap %q", dex.ErrInvalidArgument, args[1])
		}
		max = n
	}
	text, ids, truncated, err := s.doc.DecompilePackage(args[0], max, s.decompileOpts(false))
	if err != nil {
		return nil, err
	}
	return map[string]any{"java": text, "classes": ids, "truncated": truncated}, nil
}

// ---------------------------------------------------------------------------
// Editing
// ---------------------------------------------------------------------------

func (s *Session) cmdModify(args []string) (any, error) {
	if err := s.doc.Modify(args[0], args[1]); err != nil {
		return nil, err
	}
	s.log.Infof("modified %s", args[0])
	return map[string]any{}, nil
}

func (s *Session) cmdReplace(args []string) (any, error) {
	all := len(args) == 4 && args[3] == "all"
	if len(args) == 4 && !all {
		return nil, fmt.Errorf("%w: fourth argument must be \"all\"", dex.ErrInvalidArgument)
	}
	replaced, total, err := s.doc.ReplaceText(args[0], args[1], args[2], all)
	if err != nil {
		return nil, err
	}
	return map[string]any{"replaced": replaced, "total": total}, nil
}

func (s *Session) cmdDeleteClass(args []string) (any, error) {
	if err := s.doc.Delete(args[0]); err != nil {
		return nil, err
	}
	s.log.Infof("deleted %s", args[0])
	return map[string]any{}, nil
}

func (s *Session) cmdSave(args []string) (any, error) {
	out := ""
	if len(args) == 1 {
		out = args[0]
	}
	path, err := s.doc.Save(out)
	if err != nil {
		return nil, err
	}
	s.log.Infof("saved %s", path)
	return map[string]any{"path": path}, nil
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func searchData(results []dex.SearchResult) map[string]any {
	rows := make([]map[string]any, len(results))
	for i, r := range results {
		rows[i] = map[string]any{
			"class":  r.Class,
			"member": r.Member,
			"image":  r.Image,
			"text":   r.Text,
		}
	}
	return map[string]any{"results": rows, "count": len(rows)}
}

func (s *Session) cmdSearchClass(args []string) (any, error) {
	results, err := s.doc.SearchClass(args[0])
	if err != nil {
		return nil, err
	}
	return searchData(results), nil
}

func (s *Session) cmdSearchString(args []string) (any, error) {
	results, err := s.doc.SearchStrings(args[0])
	if err != nil {
		return nil, err
	}
	return searchData(results), nil
}

func (s *Session) cmdSearchMethodCalls(args []string) (any, error) {
	results, err := s.doc.SearchMethodCalls(args[0])
	if err != nil {
		return nil, err
	}
	return searchData(results), nil
}

func (s *Session) cmdSearchFieldRefs(args []string) (any, error) {
	results, err := s.doc.SearchFieldRefs(args[0])
	if err != nil {
		return nil, err
	}
	return searchData(results), nil
}

func (s *Session) cmdSearchInteger(args []string) (any, error) {
	value, err := strconv.ParseInt(args[0], 0, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad integer %q", dex.ErrInvalidArgument, args[0])
	}
	results, err := s.doc.SearchInteger(value)
	if err != nil {
		return nil, err
	}
	return searchData(results), nil
}

func (s *Session) cmdFindSubclasses(args []string) (any, error) {
	results, err := s.doc.FindSubclasses(args[0])
	if err != nil {
		return nil, err
	}
	return searchData(results), nil
}

// ---------------------------------------------------------------------------
// Checkpoints
// ---------------------------------------------------------------------------

func (s *Session) cmdCheckpoint(args []string) (any, error) {
	if err := s.doc.Checkpoint(args[0]); err != nil {
		return nil, err
	}
	return map[string]any{"name": args[0]}, nil
}

func (s *Session) cmdRestore(args []string) (any, error) {
	if err := s.doc.RestoreCheckpoint(args[0]); err != nil {
		return nil, err
	}
	return map[string]any{"name": args[0]}, nil
}

func (s *Session) cmdListCheckpoints(args []string) (any, error) {
	if !s.doc.IsOpen() {
		return nil, dex.ErrNoDocumentOpen
	}
	infos := s.doc.Checkpoints().List()
	rows := make([]map[string]any, len(infos))
	for i, cp := range infos {
		rows[i] = map[string]any{
			"name":     cp.Name,
			"created":  cp.Created.Format(time.RFC3339),
			"replaced": cp.Replaced,
			"deleted":  cp.Deleted,
		}
	}
	return map[string]any{"checkpoints": rows, "count": len(rows)}, nil
}

func (s *Session) cmdDeleteCheckpoint(args []string) (any, error) {
	if !s.doc.IsOpen() {
		return nil, dex.ErrNoDocumentOpen
	}
	if !s.doc.Checkpoints().Delete(args[0]) {
		return nil, fmt.Errorf("checkpoint %q: %w", args[0], dex.ErrNotFound)
	}
	return map[string]any{}, nil
}

// cmdExportCheckpoint writes a checkpoint's manifest to the workspace
// database. The manifest records coverage, not contents; it never
// feeds an in-session restore.
func (s *Session) cmdExportCheckpoint(args []string) (any, error) {
	if !s.doc.IsOpen() {
		return nil, dex.ErrNoDocumentOpen
	}
	cp, ok := s.doc.Checkpoints().Get(args[0])
	if !ok {
		return nil, fmt.Errorf("checkpoint %q: %w", args[0], dex.ErrNotFound)
	}
	store, err := s.workspaceStore()
	if err != nil {
		return nil, err
	}
	m := &workspace.Manifest{
		Name:     cp.Name,
		Archive:  s.doc.Path(),
		Created:  cp.Created,
		Replaced: cp.ReplacedIDs(),
		Deleted:  cp.DeletedIDs(),
	}
	if err := store.Save(m); err != nil {
		return nil, err
	}
	return map[string]any{"name": cp.Name, "database": s.storePath()}, nil
}

func (s *Session) workspaceStore() (*workspace.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	path, err := s.cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	store, err := workspace.Open(path)
	if err != nil {
		return nil, err
	}
	s.store = store
	return store, nil
}

func (s *Session) storePath() string {
	path, _ := s.cfg.DatabasePath()
	return path
}

func (s *Session) cmdSetAutoCheckpoint(args []string) (any, error) {
	switch args[0] {
	case "on", "true":
		s.doc.SetAutoCheckpoint(true)
	case "off", "false":
		s.doc.SetAutoCheckpoint(false)
	default:
		return nil, fmt.Errorf("%w: expected on or off, got %q", dex.ErrInvalidArgument, args[0])
	}
	return map[string]any{"autoCheckpoint": s.doc.AutoCheckpoint()}, nil
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func (s *Session) cmdUndo(args []string) (any, error) {
	entry, err := s.doc.Undo()
	if err != nil {
		return nil, err
	}
	return map[string]any{"action": entry.Action.String(), "class": entry.Class}, nil
}

func (s *Session) cmdRedo(args []string) (any, error) {
	entry, err := s.doc.Redo()
	if err != nil {
		return nil, err
	}
	return map[string]any{"action": entry.Action.String(), "class": entry.Class}, nil
}

func (s *Session) cmdHistory(args []string) (any, error) {
	if !s.doc.IsOpen() {
		return nil, dex.ErrNoDocumentOpen
	}
	h := s.doc.History()
	entries := h.Entries()
	rows := make([]map[string]any, len(entries))
	for i, e := range entries {
		rows[i] = map[string]any{
			"action": e.Action.String(),
			"class":  e.Class,
			"time":   e.Time.Format(time.RFC3339),
		}
	}
	return map[string]any{"entries": rows, "cursor": h.Cursor(), "cap": h.Cap()}, nil
}
