package supplier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/chem-supplier-scraper/internal/textnorm"
)

// Field is a logical column of a vendor results table.
type Field string

const (
	FieldCAS   Field = "cas"
	FieldCode  Field = "code"
	FieldName  Field = "name"
	FieldPack  Field = "pack"
	FieldPrice Field = "price"
	FieldStock Field = "stock"
)

// Row is one data row of a results table.
type Row struct {
	ID       string
	CAS      string
	Code     string
	Name     string
	Pack     string
	Price    string
	Stock    string
	PopupRef string
}

// Extractor turns a parsed results page into rows. Each vendor layout is one
// implementation, so markup drift is handled by swapping the extractor.
type Extractor interface {
	Extract(doc *goquery.Document) []Row
}

// Layout is a positional Extractor. Column indexes may be negative to count
// from the last cell. Columns missing from the map are not provided by the
// vendor; columns beyond the row's cell count come back empty.
type Layout struct {
	RowSelector    string
	HeaderKeywords []string
	MinCells       int
	Columns        map[Field]int
	RowFilter      func(*goquery.Selection) bool
	PopupSelector  string
}

func (l Layout) Extract(doc *goquery.Document) []Row {
	var rows []Row

	doc.Find(l.RowSelector).Each(func(_ int, tr *goquery.Selection) {
		row, ok := l.parseRow(tr)
		if ok {
			rows = append(rows, row)
		}
	})

	return rows
}

// IsHeader reports whether text contains every header keyword. Keywords are
// matched as written, so "Codeine" does not count as "CODE".
func (l Layout) IsHeader(text string) bool {
	if len(l.HeaderKeywords) == 0 {
		return false
	}

	for _, kw := range l.HeaderKeywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

func (l Layout) parseRow(tr *goquery.Selection) (Row, bool) {
	if l.RowFilter != nil && !l.RowFilter(tr) {
		return Row{}, false
	}

	text := strings.TrimSpace(tr.Text())
	if text == "" || l.IsHeader(text) {
		return Row{}, false
	}

	tds := tr.Find("td")
	cells := make([]string, 0, tds.Length())
	tds.Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, textnorm.CollapseSpace(td.Text()))
	})

	if len(cells) == 0 || len(cells) < l.MinCells {
		return Row{}, false
	}

	id, _ := tr.Attr("id")
	row := Row{
		ID:    id,
		CAS:   l.cell(cells, FieldCAS),
		Code:  l.cell(cells, FieldCode),
		Name:  l.cell(cells, FieldName),
		Pack:  l.cell(cells, FieldPack),
		Price: l.cell(cells, FieldPrice),
		Stock: l.cell(cells, FieldStock),
	}

	if l.PopupSelector != "" {
		row.PopupRef = popupRef(tr.Find(l.PopupSelector))
	}

	return row, true
}

func (l Layout) cell(cells []string, f Field) string {
	idx, ok := l.Columns[f]
	if !ok {
		return ""
	}
	if idx < 0 {
		idx += len(cells)
	}
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// popupRef joins the onclick and href attributes of the anchors, last anchor
// first, since the popup link usually sits in the trailing cell.
func popupRef(anchors *goquery.Selection) string {
	var parts []string

	for i := anchors.Length() - 1; i >= 0; i-- {
		a := anchors.Eq(i)
		if v, ok := a.Attr("onclick"); ok && v != "" {
			parts = append(parts, v)
		}
		if v, ok := a.Attr("href"); ok && v != "" {
			parts = append(parts, v)
		}
	}

	return strings.Join(parts, " ")
}
