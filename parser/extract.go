// Package parser turns scraped Transfermarkt markup into tidy transfer
// records: extraction of per-club in/out tables, header normalization,
// currency and fee parsing, and the final clean and sort.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Cell is one parsed table cell. Ref carries the player identifier for the
// player column and is empty everywhere else.
type Cell struct {
	Text string
	Ref  string
}

// RawTable is one club's in or out table: the original column headers and
// the positionally parsed rows.
type RawTable struct {
	Headers []string
	Rows    [][]Cell
}

// ClubTables pairs one club's in and out tables for a single window.
type ClubTables struct {
	Club string
	In   RawTable
	Out  RawTable
}

type cellParser func(*goquery.Selection) (Cell, error)

// cellParsers maps column position to its parser. Extraction is strictly
// positional; header names only matter later, at normalization.
var cellParsers = [9]cellParser{
	0: parsePlayerCell,
	1: parseTextCell,     // age
	2: parseImgTitleCell, // nationality flag
	3: parseTextCell,     // position
	4: parseTextCell,     // shirt number
	5: parseTextCell,     // market value
	6: parseImgTitleCell, // dealing club badge
	7: parseImgTitleCell, // dealing country flag
	8: parseTextCell,     // fee
}

// ExtractWindow walks one transfer-window page and returns each club's in
// and out tables in document order. Club names are h2 headings; the Nth
// club owns data tables 2N (in) and 2N+1 (out). A count mismatch means the
// page cannot be reconciled and fails the whole window.
func ExtractWindow(doc *goquery.Selection) ([]ClubTables, error) {
	var clubs []string
	doc.Find("h2.content-box-headline--logo").Each(func(_ int, h *goquery.Selection) {
		clubs = append(clubs, strings.TrimSpace(h.Text()))
	})

	var tables []RawTable
	doc.Find("div.responsive-table").Each(func(_ int, div *goquery.Selection) {
		tables = append(tables, extractTable(div.Find("table").First()))
	})

	if len(tables) != 2*len(clubs) {
		return nil, &SchemaMismatchError{Clubs: clubs, TableCount: len(tables)}
	}

	paired := make([]ClubTables, len(clubs))
	for i, club := range clubs {
		paired[i] = ClubTables{Club: club, In: tables[2*i], Out: tables[2*i+1]}
	}
	return paired, nil
}

func extractTable(table *goquery.Selection) RawTable {
	var headers []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})
	// The dealing-country column has no header text in the source markup
	// but is always present as the second-to-last column.
	if n := len(headers); n > 0 {
		last := headers[n-1]
		headers = append(headers[:n-1], "Country", last)
	}

	var rows [][]Cell
	table.Find("tbody tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		// A single-cell row is the "no new arrivals/departures"
		// placeholder: the table holds no transfers.
		if tds.Length() <= 1 {
			return false
		}
		row := make([]Cell, 0, tds.Length())
		tds.Each(func(j int, td *goquery.Selection) {
			row = append(row, parseCell(j, td))
		})
		rows = append(rows, row)
		return true
	})

	return RawTable{Headers: headers, Rows: rows}
}

// parseCell resolves a malformed or unexpected cell to the Unknown marker
// instead of failing the row.
func parseCell(j int, td *goquery.Selection) Cell {
	if j >= len(cellParsers) {
		return Cell{Text: Unknown}
	}
	cell, err := cellParsers[j](td)
	if err != nil {
		return Cell{Text: Unknown}
	}
	return cell
}

func parseTextCell(td *goquery.Selection) (Cell, error) {
	return Cell{Text: strings.TrimSpace(td.Text())}, nil
}

func parseImgTitleCell(td *goquery.Selection) (Cell, error) {
	title, ok := td.Find("img").First().Attr("title")
	if !ok {
		return Cell{}, &CellError{Reason: "no img with title attribute"}
	}
	return Cell{Text: strings.TrimSpace(title)}, nil
}

// parsePlayerCell splits the compound player cell into the display name and
// the player identifier, which is the last path segment of the profile link.
func parsePlayerCell(td *goquery.Selection) (Cell, error) {
	link := td.Find("span.hide-for-small a").First()
	if link.Length() == 0 {
		return Cell{}, &CellError{Reason: "no player link"}
	}
	href, ok := link.Attr("href")
	if !ok {
		return Cell{}, &CellError{Reason: "player link has no href"}
	}
	segments := strings.Split(href, "/")
	return Cell{
		Text: strings.TrimSpace(link.Text()),
		Ref:  segments[len(segments)-1],
	}, nil
}
