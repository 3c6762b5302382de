// Package render maps panel states to display trees and emits them as HTML or text.
package render

// Panel identifiers used in routes, websocket frames and DOM ids
const (
	PanelPnl      = "pnl"
	PanelSweep    = "sweep"
	PanelSeasonal = "seasonal"
	PanelSpread   = "spread"
)

// Panels lists every panel in page order
var Panels = []string{PanelPnl, PanelSweep, PanelSeasonal, PanelSpread}

// Kind is the shape of a panel body
type Kind int

const (
	KindMessage Kind = iota
	KindError
	KindTable
	KindChart
	KindCard
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindError:
		return "error"
	case KindTable:
		return "table"
	case KindChart:
		return "chart"
	case KindCard:
		return "card"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// View is the display tree for one panel. Exactly one of Message, Table,
// Chart or Card is meaningful, selected by Kind.
type View struct {
	Panel   string `json:"panel"`
	Title   string `json:"title"`
	Kind    Kind   `json:"kind"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
	Table   *Table `json:"table,omitempty"`
	Chart   *Chart `json:"chart,omitempty"`
	Card    *Card  `json:"card,omitempty"`
}

// Table is a header row plus formatted cells, one row per record
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Chart is a line of values over ordered category labels
type Chart struct {
	Labels     []string  `json:"labels"`
	TickLabels []string  `json:"tick_labels"`
	Values     []float64 `json:"values"`
}

// Card is a titled list of label/value pairs
type Card struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Field is one labelled value on a Card
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
