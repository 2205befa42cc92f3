package pawrun

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// borderSet is the line drawing for one table mode. An empty horizontal
// fill omits that line; empty edges omit the outer frame.
type borderSet struct {
	topL, topH, topM, topR string
	midL, midH, midM, midR string
	botL, botH, botM, botR string
	vL, vM, vR             string
}

var borderSets = map[TableMode]borderSet{
	TableBasic: {
		"+", "-", "+", "+",
		"+", "-", "+", "+",
		"+", "-", "+", "+",
		"|", "|", "|",
	},
	TableCompact: {
		midH: "─", midM: "┼",
		vM: "│",
	},
	TableCompactDouble: {
		midH: "═", midM: "╪",
		vM: "║",
	},
	TableHeavy: {
		"┏", "━", "┳", "┓",
		"┣", "━", "╋", "┫",
		"┗", "━", "┻", "┛",
		"┃", "┃", "┃",
	},
	TableLight: {
		midH: "─", midM: "─",
		vM: " ",
	},
	TableMarkdown: {
		midL: "|", midH: "-", midM: "|", midR: "|",
		vL: "|", vM: "|", vR: "|",
	},
	TableNone: {
		vM: " ",
	},
	TablePsql: {
		midH: "-", midM: "+",
		vM: "|",
	},
	TableReinforced: {
		"┏", "─", "┬", "┓",
		"├", "─", "┼", "┤",
		"┗", "─", "┴", "┛",
		"│", "│", "│",
	},
	TableRounded: {
		"╭", "─", "┬", "╮",
		"├", "─", "┼", "┤",
		"╰", "─", "┴", "╯",
		"│", "│", "│",
	},
	TableSingle: {
		"┌", "─", "┬", "┐",
		"├", "─", "┼", "┤",
		"└", "─", "┴", "┘",
		"│", "│", "│",
	},
	TableDouble: {
		"╔", "═", "╦", "╗",
		"╠", "═", "╬", "╣",
		"╚", "═", "╩", "╝",
		"║", "║", "║",
	},
	TableThin: {
		"┌", "─", "┬", "┐",
		"├", "─", "┼", "┤",
		"└", "─", "┴", "┘",
		"│", "│", "│",
	},
	TableASCIIRounded: {
		".", "-", "+", ".",
		"|", "-", "+", "|",
		"'", "-", "+", "'",
		"|", "|", "|",
	},
	TableDots: {
		".", ".", ".", ".",
		":", ".", ":", ":",
		":", ".", ":", ":",
		":", ":", ":",
	},
}

const (
	ansiHeader = "\x1b[1;32m"
	ansiReset  = "\x1b[0m"
	ellipsis   = "…"
)

// tableRenderer turns values into text the way print and table show them
type tableRenderer struct {
	mode      TableMode
	precision int
	color     bool
	maxWidth  int // 0 means unlimited
}

func newTableRenderer(cfg *SessionConfig, caps *TerminalCapabilities) *tableRenderer {
	r := &tableRenderer{mode: TableRounded, precision: -1}
	if cfg != nil {
		r.mode = cfg.TableMode
		r.precision = cfg.FloatPrecision
	}
	if caps != nil {
		r.color = useColor(cfgColorMode(cfg), caps)
		if caps.IsTerminal {
			r.maxWidth = caps.Width
		}
	}
	return r
}

func cfgColorMode(cfg *SessionConfig) ColorMode {
	if cfg == nil {
		return ColorAuto
	}
	return cfg.ColorMode
}

// Render renders a whole value; scalars render as plain text
func (r *tableRenderer) Render(v Value) string {
	switch v.Kind {
	case KindList:
		if len(v.List) == 0 {
			return ""
		}
		if isTable(v.List) {
			cols := tableColumns(v.List)
			headers := append([]string{"#"}, cols...)
			rows := make([][]string, len(v.List))
			for i, item := range v.List {
				row := []string{strconv.Itoa(i)}
				for _, col := range cols {
					cell, ok := item.Record.Get(col)
					if !ok {
						row = append(row, "")
						continue
					}
					row = append(row, r.cell(cell))
				}
				rows[i] = row
			}
			return r.table(headers, rows)
		}
		rows := make([][]string, len(v.List))
		for i, item := range v.List {
			rows[i] = []string{strconv.Itoa(i), r.cell(item)}
		}
		return r.table(nil, rows)
	case KindRecord:
		var rows [][]string
		v.Record.Each(func(col string, val Value) {
			rows = append(rows, []string{col, r.cell(val)})
		})
		if len(rows) == 0 {
			return ""
		}
		return r.table(nil, rows)
	case KindError:
		return "Error: " + v.Err.Summary() + "\n"
	case KindNothing:
		return ""
	}
	return formatValue(v, r.scalarPrecision(v)) + "\n"
}

func (r *tableRenderer) scalarPrecision(v Value) int {
	if v.Kind == KindFloat {
		return r.precision
	}
	return -1
}

// cell renders a nested value on one line
func (r *tableRenderer) cell(v Value) string {
	switch v.Kind {
	case KindList:
		if isTable(v.List) {
			return fmt.Sprintf("[table %d rows]", len(v.List))
		}
		return fmt.Sprintf("[list %d items]", len(v.List))
	case KindRecord:
		return fmt.Sprintf("{record %d fields}", v.Record.Len())
	case KindString:
		return strings.ReplaceAll(v.Str, "\n", " ")
	}
	return formatValue(v, r.scalarPrecision(v))
}

// table lays out headers (optional) and rows with the mode's borders
func (r *tableRenderer) table(headers []string, rows [][]string) string {
	b, ok := borderSets[r.mode]
	if !ok {
		b = borderSets[TableRounded]
	}
	ncols := len(headers)
	for _, row := range rows {
		ncols = max(ncols, len(row))
	}
	widths := make([]int, ncols)
	measure := func(cells []string) {
		for i, c := range cells {
			widths[i] = max(widths[i], displayWidth(c))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}
	ncols, truncated := r.fit(b, widths)
	widths = widths[:ncols]
	if truncated {
		widths = append(widths, displayWidth(ellipsis))
		headers = clip(headers, ncols)
		for i := range rows {
			rows[i] = clip(rows[i], ncols)
		}
	}

	var out strings.Builder
	line := func(l, h, m, rt string) {
		if h == "" {
			return
		}
		out.WriteString(l)
		for i, w := range widths {
			if i > 0 {
				out.WriteString(m)
			}
			out.WriteString(strings.Repeat(h, w+2))
		}
		out.WriteString(rt)
		out.WriteString("\n")
	}
	cells := func(row []string, header bool) {
		var s strings.Builder
		s.WriteString(b.vL)
		for i, w := range widths {
			if i > 0 {
				s.WriteString(b.vM)
			}
			c := ""
			if i < len(row) {
				c = row[i]
			}
			c = truncateToWidth(c, w)
			pad := strings.Repeat(" ", w-displayWidth(c))
			s.WriteString(" ")
			if r.color && (header || i == 0) {
				s.WriteString(ansiHeader + c + ansiReset)
			} else {
				s.WriteString(c)
			}
			s.WriteString(pad + " ")
		}
		s.WriteString(b.vR)
		out.WriteString(strings.TrimRightFunc(s.String(), unicode.IsSpace))
		out.WriteString("\n")
	}

	line(b.topL, b.topH, b.topM, b.topR)
	if headers != nil {
		cells(headers, true)
		line(b.midL, b.midH, b.midM, b.midR)
	}
	for _, row := range rows {
		cells(row, false)
	}
	line(b.botL, b.botH, b.botM, b.botR)
	return out.String()
}

// fit drops trailing columns until the table fits maxWidth, leaving room
// for an ellipsis column. The first column always stays and is clipped when
// it alone is too wide.
func (r *tableRenderer) fit(b borderSet, widths []int) (int, bool) {
	if r.maxWidth <= 0 {
		return len(widths), false
	}
	total := func(n int, extra int) int {
		w := displayWidth(b.vL) + displayWidth(b.vR)
		cols := n
		for i := 0; i < n; i++ {
			w += widths[i] + 2
		}
		if extra > 0 {
			w += extra + 2
			cols++
		}
		return w + (cols-1)*displayWidth(b.vM)
	}
	n := len(widths)
	if total(n, 0) <= r.maxWidth {
		return n, false
	}
	if n == 1 {
		widths[0] = max(1, widths[0]-(total(1, 0)-r.maxWidth))
		return 1, false
	}
	ew := displayWidth(ellipsis)
	for n > 1 && total(n, ew) > r.maxWidth {
		n--
	}
	if over := total(n, ew) - r.maxWidth; over > 0 {
		widths[0] = max(1, widths[0]-over)
	}
	return n, true
}

func clip(row []string, n int) []string {
	if row == nil {
		return nil
	}
	out := append([]string{}, row[:min(n, len(row))]...)
	return append(out, ellipsis)
}

// displayWidth is the number of terminal columns s occupies
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		w += runeWidth(r)
	}
	return w
}

func runeWidth(r rune) int {
	if unicode.Is(unicode.Mn, r) || r == '\u200b' {
		return 0
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// truncateToWidth clips s to w columns, marking the cut with an ellipsis
func truncateToWidth(s string, w int) string {
	if displayWidth(s) <= w {
		return s
	}
	if w <= 0 {
		return ""
	}
	var out strings.Builder
	used := 0
	for _, r := range s {
		rw := runeWidth(r)
		if used+rw > w-1 {
			break
		}
		out.WriteRune(r)
		used += rw
	}
	out.WriteString(ellipsis)
	return out.String()
}
