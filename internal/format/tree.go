package format

import (
	"sort"
	"strings"

	"github.com/zjrosen/klaude/internal/store"
)

// SessionNode is one session in a rendered tree.
type SessionNode struct {
	Session  *store.Session
	Children []*SessionNode
}

// BuildSessionTree arranges sessions into parent/child order. A session
// whose parent is not in the input is promoted to a root, so a partial
// listing still renders. Roots and siblings sort by creation time.
func BuildSessionTree(sessions []*store.Session) []*SessionNode {
	nodes := make(map[string]*SessionNode, len(sessions))
	for _, s := range sessions {
		nodes[s.ID] = &SessionNode{Session: s}
	}

	var roots []*SessionNode
	for _, s := range sessions {
		node := nodes[s.ID]
		if parent, ok := nodes[s.ParentID]; ok && s.ParentID != s.ID {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}

	var sortNodes func(ns []*SessionNode)
	sortNodes = func(ns []*SessionNode) {
		sort.Slice(ns, func(i, j int) bool {
			return ns[i].Session.CreatedAt.Before(ns[j].Session.CreatedAt)
		})
		for _, n := range ns {
			sortNodes(n.Children)
		}
	}
	sortNodes(roots)
	return roots
}

// RenderSessionTree renders the tree one session per line with branch
// guides. Each line: glyph, short id, agent type, status, title.
func RenderSessionTree(roots []*SessionNode, width int) string {
	var b strings.Builder
	for _, root := range roots {
		renderNode(&b, root, "", "", width)
	}
	return b.String()
}

func renderNode(b *strings.Builder, node *SessionNode, branch, childIndent string, width int) {
	s := node.Session

	var line strings.Builder
	line.WriteString(branch)
	line.WriteString(StatusGlyph(s.Status))
	line.WriteString(" ")
	line.WriteString(SecondaryStyle.Render(store.ShortID(s.ID)))
	line.WriteString(" ")
	line.WriteString(s.AgentType)
	line.WriteString(" ")
	line.WriteString(StatusBadge(s.Status))

	if title := FirstLine(s.Title); title != "" {
		used := cellWidth(line.String())
		if avail := width - used - 2; avail > 8 {
			line.WriteString("  ")
			line.WriteString(Truncate(title, avail))
		}
	}

	b.WriteString(line.String())
	b.WriteString("\n")

	for i, child := range node.Children {
		last := i == len(node.Children)-1
		connector := "├─ "
		next := "│  "
		if last {
			connector = "└─ "
			next = "   "
		}
		renderNode(b, child, childIndent+connector, childIndent+next, width)
	}
}
