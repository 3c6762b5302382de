package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// DefaultTextRows caps how many chart points the text emitter prints
const DefaultTextRows = 12

// TextEmitter writes display trees for a terminal
type TextEmitter struct {
	w       io.Writer
	maxRows int

	title *color.Color
	err   *color.Color
	head  *color.Color
	muted *color.Color
}

// NewTextEmitter writes to w. noColor disables ANSI styling; otherwise
// styling follows the terminal detection of fatih/color.
func NewTextEmitter(w io.Writer, noColor bool) *TextEmitter {
	e := &TextEmitter{
		w:       w,
		maxRows: DefaultTextRows,
		title:   color.New(color.Bold, color.FgCyan),
		err:     color.New(color.FgRed),
		head:    color.New(color.Bold),
		muted:   color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{e.title, e.err, e.head, e.muted} {
			c.DisableColor()
		}
	}
	return e
}

// Emit writes one panel
func (e *TextEmitter) Emit(v View) error {
	if _, err := e.title.Fprintf(e.w, "== %s ==\n", v.Title); err != nil {
		return err
	}

	switch v.Kind {
	case KindError:
		if _, err := e.err.Fprintln(e.w, v.Message); err != nil {
			return err
		}
	case KindTable:
		if err := e.table(v.Table.Headers, v.Table.Rows); err != nil {
			return err
		}
	case KindChart:
		if err := e.chart(v.Chart); err != nil {
			return err
		}
	case KindCard:
		if _, err := e.head.Fprintln(e.w, v.Card.Title); err != nil {
			return err
		}
		for _, f := range v.Card.Fields {
			if _, err := fmt.Fprintf(e.w, "  %s: %s\n", f.Label, f.Value); err != nil {
				return err
			}
		}
	default:
		if _, err := fmt.Fprintln(e.w, v.Message); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(e.w)
	return err
}

// EmitAll writes every view in order
func (e *TextEmitter) EmitAll(views []View) error {
	for _, v := range views {
		if err := e.Emit(v); err != nil {
			return err
		}
	}
	return nil
}

func (e *TextEmitter) table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(e.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")+"\t"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(r, "\t")+"\t"); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		if _, err := fmt.Fprintln(tw, "(no rows)\t"); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func (e *TextEmitter) chart(c *Chart) error {
	start := 0
	if len(c.Values) > e.maxRows {
		start = len(c.Values) - e.maxRows
		if _, err := e.muted.Fprintf(e.w, "(%d earlier points omitted)\n", start); err != nil {
			return err
		}
	}
	rows := make([][]string, 0, len(c.Values)-start)
	for i := start; i < len(c.Values); i++ {
		rows = append(rows, []string{c.Labels[i], strconv.FormatFloat(c.Values[i], 'f', 2, 64)})
	}
	return e.table([]string{"Date", "Value"}, rows)
}
