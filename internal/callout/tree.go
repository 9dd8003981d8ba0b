package callout

// Line is a document line claimed by a block.
type Line struct {
	Index int
	Text  string
}

// Block is one callout and the lines and child callouts it owns.
type Block struct {
	Kind Kind
	// Name is the callout name as written, e.g. "Dream-Diary".
	Name string
	// Level is the quote depth of the marker line. A child is never
	// shallower than its parent but may share its level: a diary written at
	// the same depth directly below a journal marker still attaches to it.
	Level     int
	FirstLine int
	// Header is the verbatim marker line; Label is the text after the marker.
	Header   string
	Label    string
	Lines    []Line
	Children []*Block
	// Orphan marks a diary or metrics block that had no compatible parent.
	Orphan bool
}

// Texts returns the raw text of the block's own lines.
func (b *Block) Texts() []string {
	out := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		out[i] = l.Text
	}
	return out
}

// ChildrenOf returns the direct children of kind k.
func (b *Block) ChildrenOf(k Kind) []*Block {
	var out []*Block
	for _, c := range b.Children {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

type frame struct {
	kind  Kind
	level int
	block *Block
}

// Build turns document lines into top-level blocks. It never fails: blocks
// left open at the end of input are simply finalized there.
//
// Frames whose level is strictly greater than the current line's depth are
// closed; a same-depth line continues the open block. A recognized marker
// attaches to the nearest compatible frame on the stack, closing the frames
// above it. Diary and metrics blocks without a compatible frame become
// top-level orphans so their content is still reported.
func Build(lines []string, vocab Vocabulary) []*Block {
	var (
		roots []*Block
		stack []frame
	)

	for i, line := range lines {
		depth := Depth(line)
		for len(stack) > 0 && stack[len(stack)-1].level > depth {
			stack = stack[:len(stack)-1]
		}

		if name, label, ok := ParseMarker(line); ok {
			if kind := vocab.KindOf(name); kind != Unknown {
				b := &Block{
					Kind:      kind,
					Name:      name,
					Level:     depth,
					FirstLine: i,
					Header:    line,
					Label:     label,
				}

				parent := -1
				for j := len(stack) - 1; j >= 0; j-- {
					if canContain(stack[j].kind, kind) {
						parent = j
						break
					}
				}
				if parent >= 0 {
					stack = stack[:parent+1]
					p := stack[parent].block
					p.Children = append(p.Children, b)
				} else {
					for len(stack) > 0 && stack[len(stack)-1].level >= depth {
						stack = stack[:len(stack)-1]
					}
					b.Orphan = kind != JournalEntry
					roots = append(roots, b)
				}
				stack = append(stack, frame{kind: kind, level: depth, block: b})
				continue
			}
		}

		if len(stack) > 0 {
			top := stack[len(stack)-1].block
			top.Lines = append(top.Lines, Line{Index: i, Text: line})
		}
	}

	return roots
}

// Walk visits every block depth-first in document order. parent is nil for
// top-level blocks.
func Walk(roots []*Block, fn func(b, parent *Block)) {
	type item struct{ b, parent *Block }
	stack := make([]item, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, item{b: roots[i]})
	}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(it.b, it.parent)
		for i := len(it.b.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{b: it.b.Children[i], parent: it.b})
		}
	}
}
