// File: internal/pagewatch/rewriter.go
package pagewatch

import (
	"fmt"

	"github.com/xkilldash9x/dccon-cli/internal/browser/shim"
)

// ImagePath is the asset directory under the base URL.
const ImagePath = "/images/dccon/"

// Verdict is what the watcher decides for one chat text.
type Verdict int

const (
	// Unmatched text does not follow the keyword syntax and is left alone.
	Unmatched Verdict = iota
	// Unresolved text follows the syntax but some keyword has no descriptor.
	// It is left alone too; a message is never half rendered.
	Unresolved
	// Replace means every keyword resolved; the text becomes images.
	Replace
)

func (v Verdict) String() string {
	switch v {
	case Unmatched:
		return "unmatched"
	case Unresolved:
		return "unresolved"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Image is one image the watcher would insert.
type Image struct {
	Keyword    string
	Descriptor Descriptor
	Src        string
}

// Plan describes the rewrite of one chat text.
type Plan struct {
	Verdict Verdict
	Message Message
	// Images is set only for Replace, in insertion order.
	Images []Image
	// Missing lists the keywords that did not resolve.
	Missing []string
}

// Rewriter decides how chat texts are rewritten.
type Rewriter struct {
	index   *Index
	baseURL string
}

// NewRewriter creates a Rewriter resolving keywords through index.
func NewRewriter(index *Index, baseURL string) *Rewriter {
	if index == nil {
		index = NewIndex()
	}
	return &Rewriter{index: index, baseURL: shim.NormalizeBaseURL(baseURL)}
}

// ImageSrc returns the image URL for d. The name is appended verbatim.
func (r *Rewriter) ImageSrc(d Descriptor) string {
	return r.baseURL + ImagePath + d.Name
}

// Plan evaluates text against the keyword syntax and the index.
func (r *Rewriter) Plan(text string) Plan {
	msg, ok := ParseMessage(text)
	if !ok {
		return Plan{Verdict: Unmatched}
	}

	plan := Plan{Message: msg}
	images := make([]Image, 0, len(msg.Keywords))
	for _, kw := range msg.Keywords {
		d, found := r.index.Lookup(kw)
		if !found {
			plan.Missing = append(plan.Missing, kw)
			continue
		}
		images = append(images, Image{Keyword: kw, Descriptor: d, Src: r.ImageSrc(d)})
	}

	if len(plan.Missing) > 0 {
		plan.Verdict = Unresolved
		return plan
	}
	plan.Verdict = Replace
	plan.Images = images
	return plan
}
