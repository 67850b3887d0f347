// File: internal/pagewatch/page.go
package pagewatch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/dccon-cli/internal/browser/shim"
)

// Loader supplies the catalog for a freshly installed watcher.
type Loader func(ctx context.Context) ([]Descriptor, error)

// Mutation is one child-list change delivered to an observer.
type Mutation struct {
	Target     *html.Node
	AddedNodes []*html.Node
}

// Subscription is the handle returned by Observe.
type Subscription struct {
	page      *Page
	container *html.Node
	fn        func([]Mutation)
}

// Dispose stops delivery to this subscription. It is safe to call more than once.
func (s *Subscription) Dispose() {
	p := s.page
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.observers[s.container]
	for i, sub := range subs {
		if sub == s {
			p.observers[s.container] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(p.observers[s.container]) == 0 {
		delete(p.observers, s.container)
	}
}

// Stats counts what the installed watcher did.
type Stats struct {
	Rewritten  int
	Unresolved int
	Ignored    int
}

// watcherState is the page's guard cell. A nil cell means not installed.
type watcherState struct {
	index    *Index
	rewriter *Rewriter
	ready    chan struct{}
	loadErr  error
	subs     []*Subscription
	stats    Stats
}

// Page is an in-memory chat page with the watcher's install and rewrite
// behavior. DOM access is serialized, standing in for the browser's single
// event loop.
type Page struct {
	mu        sync.Mutex
	doc       *html.Node
	baseURL   string
	logger    *zap.Logger
	observers map[*html.Node][]*Subscription
	watcher   *watcherState
}

// NewPage wraps a parsed document.
func NewPage(doc *html.Node, baseURL string, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Page{
		doc:       doc,
		baseURL:   baseURL,
		logger:    logger.Named("pagewatch"),
		observers: make(map[*html.Node][]*Subscription),
	}
}

// ParsePage parses an HTML document into a Page.
func ParsePage(r io.Reader, baseURL string, logger *zap.Logger) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return NewPage(doc, baseURL, logger), nil
}

// Document returns the root node. Callers must not mutate it concurrently
// with the page.
func (p *Page) Document() *html.Node { return p.doc }

// ChatLists returns the chat list containers currently in the document.
func (p *Page) ChatLists() []*html.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return findByClass(p.doc, ChatListClass)
}

// Install runs the watcher entry point. The first call installs: it starts
// loading the catalog on its own goroutine and observes every chat list
// right away, so messages arriving before the catalog is loaded stay
// unmatched. Later calls change nothing.
func (p *Page) Install(ctx context.Context, loader Loader) string {
	p.mu.Lock()
	if p.watcher != nil {
		p.mu.Unlock()
		return shim.ResultAlreadyInstalled
	}

	index := NewIndex()
	w := &watcherState{
		index:    index,
		rewriter: NewRewriter(index, p.baseURL),
		ready:    make(chan struct{}),
	}
	p.watcher = w

	for _, container := range findByClass(p.doc, ChatListClass) {
		w.subs = append(w.subs, p.observeLocked(container, p.onMutations))
	}
	p.mu.Unlock()

	go p.loadCatalog(ctx, w, loader)

	p.logger.Debug("Watcher installed.", zap.Int("chat_lists", len(w.subs)))
	return shim.ResultInstalled
}

func (p *Page) loadCatalog(ctx context.Context, w *watcherState, loader Loader) {
	defer close(w.ready)

	if loader == nil {
		return
	}
	descriptors, err := loader(ctx)
	if err != nil {
		p.logger.Warn("Failed to load emoticon catalog.", zap.Error(err))
		p.mu.Lock()
		w.loadErr = err
		p.mu.Unlock()
		return
	}
	w.index.Add(descriptors...)
	p.logger.Debug("Emoticon catalog loaded.", zap.Int("keywords", w.index.Len()))
}

// Installed reports whether the guard cell is set.
func (p *Page) Installed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watcher != nil
}

// Ready is closed once the catalog load has finished, successfully or not.
// It is nil before Install.
func (p *Page) Ready() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	return p.watcher.ready
}

// LoadErr returns the catalog load failure, if any.
func (p *Page) LoadErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return nil
	}
	return p.watcher.loadErr
}

// Stats returns the watcher's counters.
func (p *Page) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher == nil {
		return Stats{}
	}
	return p.watcher.stats
}

// Dispose detaches the watcher's observers. The page stays installed, so a
// later Install still reports it as already executed.
func (p *Page) Dispose() {
	p.mu.Lock()
	var subs []*Subscription
	if p.watcher != nil {
		subs = p.watcher.subs
		p.watcher.subs = nil
	}
	p.mu.Unlock()

	for _, s := range subs {
		s.Dispose()
	}
}

// Observe subscribes fn to direct child insertions on container. Attribute
// and deeper subtree changes are not reported.
func (p *Page) Observe(container *html.Node, fn func([]Mutation)) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observeLocked(container, fn)
}

func (p *Page) observeLocked(container *html.Node, fn func([]Mutation)) *Subscription {
	s := &Subscription{page: p, container: container, fn: fn}
	p.observers[container] = append(p.observers[container], s)
	return s
}

// AppendChildren appends detached nodes to container and then delivers a
// single batch to the container's observers.
func (p *Page) AppendChildren(container *html.Node, nodes ...*html.Node) error {
	p.mu.Lock()
	for _, n := range nodes {
		if n.Parent != nil {
			p.mu.Unlock()
			return fmt.Errorf("node <%s> is already attached", n.Data)
		}
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	subs := append([]*Subscription(nil), p.observers[container]...)
	p.mu.Unlock()

	if len(nodes) == 0 {
		return nil
	}
	batch := []Mutation{{Target: container, AddedNodes: nodes}}
	for _, s := range subs {
		s.fn(batch)
	}
	return nil
}

// Replay detaches the children of every chat list and appends them back,
// one batch per list, as if each message had just arrived. It returns the
// number of nodes replayed.
func (p *Page) Replay() (int, error) {
	total := 0
	for _, container := range p.ChatLists() {
		p.mu.Lock()
		var children []*html.Node
		for c := container.FirstChild; c != nil; {
			next := c.NextSibling
			container.RemoveChild(c)
			children = append(children, c)
			c = next
		}
		p.mu.Unlock()

		if err := p.AppendChildren(container, children...); err != nil {
			return total, err
		}
		total += len(children)
	}
	return total, nil
}

// onMutations is the watcher's observer callback.
func (p *Page) onMutations(mutations []Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.watcher
	for _, m := range mutations {
		for _, node := range m.AddedNodes {
			if node.Type != html.ElementNode {
				continue
			}
			p.rewriteLocked(w, findChatText(node))
		}
	}
}

func (p *Page) rewriteLocked(w *watcherState, textNode *html.Node) {
	if textNode == nil {
		return
	}

	text := textContent(textNode)
	plan := w.rewriter.Plan(text)
	switch plan.Verdict {
	case Unmatched:
		w.stats.Ignored++
		return
	case Unresolved:
		w.stats.Unresolved++
		p.logger.Debug("No DCCon found for keyword.", zap.Strings("missing", plan.Missing))
		return
	}

	for _, img := range plan.Images {
		textNode.Parent.InsertBefore(newImage(img), textNode)
	}
	clearChildren(textNode)
	w.stats.Rewritten++
}

// Render writes the current document.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return html.Render(w, p.doc)
}
