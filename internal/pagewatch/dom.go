// File: internal/pagewatch/dom.go
package pagewatch

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Class names the chat widget uses.
const (
	ChatListClass = "chat_list"
	ChatClass     = "chat"
	TextClass     = "text"
	ImageClass    = "dccon"
)

func hasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// findByClass returns every element under root (root included) carrying
// class, in document order.
func findByClass(root *html.Node, class string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if hasClass(n, class) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// findChatText mirrors querySelector(".chat .text") on node: the first
// descendant, in document order, with class text and some ancestor with
// class chat. The ancestor may sit above node itself.
func findChatText(node *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if hasClass(c, TextClass) && hasChatAncestor(c) {
				found = c
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(node)
	return found
}

func hasChatAncestor(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if hasClass(p, ChatClass) {
			return true
		}
	}
	return false
}

// textContent concatenates every text node under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// clearChildren is the equivalent of setting textContent to "".
func clearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func newImage(img Image) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     "img",
		DataAtom: atom.Img,
		Attr: []html.Attribute{
			{Key: "src", Val: img.Src},
			{Key: "alt", Val: img.Keyword},
			{Key: "class", Val: ImageClass},
			{Key: "style", Val: "height: 100px;"},
		},
	}
}
