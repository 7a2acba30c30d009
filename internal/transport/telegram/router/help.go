package router

import (
	"sort"
	"strings"

	"giveawaybot/pkg/tgui"
)

// helpText renders /help, or help for a command path, as HTML.
func (m *Manager) helpText(path []string) tgui.H {
	m.mu.RLock()
	root, alias := m.root, m.alias
	m.mu.RUnlock()

	if len(path) == 0 {
		return helpTop(root)
	}
	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		p = strings.TrimPrefix(p, "/")
		n, ok := cur.child(p)
		if !ok {
			if leaf, ok := alias[p]; ok && leaf.cmd != nil && cur == root {
				return helpNode(leaf, splitRoute(leaf.cmd.Route))
			}
			return tgui.Raw("❓ ") + tgui.B("Unknown command") + tgui.Raw("\nType ") + tgui.Code("/help") + tgui.Raw(" for the command list.")
		}
		cur = n
		full = append(full, p)
	}
	return helpNode(cur, full)
}

func helpTop(root *cmdNode) tgui.H {
	type row struct {
		name, desc string
		lock       bool
	}
	var rows []row
	for _, name := range root.childNames() {
		n, _ := root.child(name)
		rows = append(rows, row{name: name, desc: n.summary(), lock: n.ownerOnly()})
	}
	// owner-only commands last
	sort.SliceStable(rows, func(i, j int) bool { return !rows[i].lock && rows[j].lock })

	lines := []tgui.H{
		tgui.Raw("📚 ") + tgui.B("Commands"),
		tgui.Raw("Type ") + tgui.Code("/help <cmd>") + tgui.Raw(" for details."),
		"",
	}
	for _, r := range rows {
		lines = append(lines, listLine("/"+r.name, r.desc, r.lock))
	}
	return joinLines(lines)
}

func helpNode(cur *cmdNode, full []string) tgui.H {
	lines := []tgui.H{tgui.Raw("📚 ") + tgui.B("Help") + tgui.Raw(" ") + tgui.Code("/"+strings.Join(full, " "))}
	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, tgui.Esc(d))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, tgui.Raw("🔒 ")+tgui.I("owner only"))
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", tgui.B("Usage"), tgui.Code(u))
		}
		if short := shortcuts(*c); len(short) > 0 {
			lines = append(lines, "", tgui.B("Shortcuts"))
			for _, s := range short {
				lines = append(lines, tgui.Raw("• ")+tgui.Code("/"+s))
			}
		}
	} else if cur.ownerOnly() {
		lines = append(lines, tgui.Raw("🔒 ")+tgui.I("owner only"))
	}

	if len(cur.children) > 0 {
		lines = append(lines, "", tgui.B("Subcommands"))
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			lines = append(lines, listLine("/"+strings.Join(append(append([]string(nil), full...), name), " "), n.summary(), n.ownerOnly()))
		}
	}
	return joinLines(lines)
}

func listLine(cmd, desc string, lock bool) tgui.H {
	h := tgui.Raw("• ")
	if lock {
		h += tgui.Raw("🔒 ")
	}
	h += tgui.Code(cmd)
	if desc != "" {
		h += tgui.Raw(" · ") + tgui.Esc(desc)
	}
	return h
}

// joinLines joins with newlines, collapsing runs of blank lines.
func joinLines(lines []tgui.H) tgui.H {
	var b strings.Builder
	blank := false
	for i, l := range lines {
		if l == "" {
			blank = true
			continue
		}
		if i > 0 {
			b.WriteString("\n")
			if blank {
				b.WriteString("\n")
			}
		}
		blank = false
		b.WriteString(l.String())
	}
	return tgui.Raw(b.String())
}

func shortcuts(c Command) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if menu, ok := menuName(splitRoute(c.Route)); ok && menu != c.Route {
		add(menu)
	}
	for _, a := range c.Aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		add(a)
		add(sanitizeCommand(a))
	}
	sort.Strings(out)
	return out
}
