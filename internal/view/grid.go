package view

import (
	"io"
	"strings"
	"unicode/utf8"

	fcolor "github.com/fatih/color"
)

const gridPadding = 2

// cell is one table value; color is applied after the value is measured.
type cell struct {
	text  string
	color *fcolor.Color
}

func plain(text string) cell { return cell{text: text} }

func colored(c *fcolor.Color, text string) cell { return cell{text: text, color: c} }

// grid is a left-aligned table for rows that carry colour. text/tabwriter counts
// escape sequences as width, so coloured columns would drift out of line.
type grid struct {
	w    io.Writer
	rows [][]cell
}

func newGrid(w io.Writer, headers ...string) *grid {
	g := &grid{w: w}
	row := make([]cell, len(headers))
	for i, h := range headers {
		row[i] = plain(h)
	}
	g.rows = append(g.rows, row)
	return g
}

func (g *grid) add(cells ...cell) {
	g.rows = append(g.rows, cells)
}

// flush pads every cell but the last in a row to its column width, then colours it.
func (g *grid) flush() error {
	var widths []int
	for _, row := range g.rows {
		for i, c := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(c.text))
		}
	}

	var b strings.Builder
	for _, row := range g.rows {
		for i, c := range row {
			if c.color != nil {
				b.WriteString(c.color.Sprint(c.text))
			} else {
				b.WriteString(c.text)
			}
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c.text)+gridPadding))
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(g.w, b.String())
	return err
}
