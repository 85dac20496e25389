package server

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/regc/compiler"
	"github.com/chazu/regc/pkg/codegen"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "regc-lsp"

var log = commonlog.GetLogger("regc.server")

// document is an open editor buffer and its latest analysis.
type document struct {
	text     string
	analysis *analysis
}

// LspServer provides diagnostics, hover and completion for source files.
type LspServer struct {
	worker *Worker
	opts   codegen.Options

	mu   sync.Mutex
	docs map[string]*document // URI → document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server that compiles with opts.
func NewLSP(opts codegen.Options) *LspServer {
	s := &LspServer{
		worker:  NewWorker(),
		opts:    opts,
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("regc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.update(ctx, uri, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update analyzes text, stores it and publishes its diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	a, err := s.analyze(text)
	if err != nil {
		log.Errorf("analyzing %s: %s", uri, err)
		return
	}

	s.mu.Lock()
	s.docs[string(uri)] = &document{text: text, analysis: a}
	s.mu.Unlock()

	diagnostics := a.diagnostics
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func (s *LspServer) analyze(text string) (*analysis, error) {
	res, err := s.worker.Do(func() interface{} {
		return analyze(text, s.opts)
	})
	if err != nil {
		return nil, err
	}
	return res.(*analysis), nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (*document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[string(uri)]
	return doc, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(doc.analysis, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc.analysis, word), nil
}

// complete offers keywords for upper-case prefixes and declared names for
// lower-case ones.
func complete(a *analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if unicode.IsUpper(rune(prefix[0])) {
		kws := compiler.Keywords()
		sort.Strings(kws)
		for _, kw := range kws {
			if strings.HasPrefix(kw, prefix) {
				kind := protocol.CompletionItemKindKeyword
				kwCopy := kw
				items = append(items, protocol.CompletionItem{
					Label:      kw,
					Kind:       &kind,
					InsertText: &kwCopy,
				})
			}
		}
		return items
	}

	var names []string
	for name := range a.decls {
		names = append(names, name)
	}
	for name := range a.iterators {
		if _, declared := a.decls[name]; !declared {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindVariable
		detail := "scalar"
		if d, ok := a.decls[name]; ok && d.IsArray() {
			detail = fmt.Sprintf("array[%s]", d.Length)
		} else if !ok {
			detail = "loop variable"
		}
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}
	return items
}

// hover describes a declared name and where it lives in memory.
func hover(a *analysis, word string) *protocol.Hover {
	var b strings.Builder

	d, declared := a.decls[word]
	switch {
	case declared && d.IsArray():
		fmt.Fprintf(&b, "**%s** array of %s", word, d.Length)
	case declared:
		fmt.Fprintf(&b, "**%s** scalar", word)
	case a.iterators[word]:
		fmt.Fprintf(&b, "**%s** loop variable, read-only, lives in loop scratch", word)
	default:
		return nil
	}

	if p, ok := a.placements[word]; ok {
		fmt.Fprintf(&b, "\n\n%s segment, address %s", p.Segment, p.Address)
		if p.Length != nil {
			last := new(big.Int).Add(p.Address, p.Length)
			fmt.Fprintf(&b, " to %s", last.Sub(last, big.NewInt(1)))
		}
	}
	if a.instructions > 0 {
		fmt.Fprintf(&b, "\n\n---\n\nprogram: %d instructions, static cost %d", a.instructions, a.cost)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
