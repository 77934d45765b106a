package fields

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docintake/internal/entity"
)

// extractItems parses line items row by row. Rows matching neither shape
// are skipped; summary rows (totals, tax, change) never count as items.
func extractItems(text string) []entity.LineItem {
	var items []entity.LineItem
	for _, ln := range nonEmptyLines(text) {
		if reSummaryRow.MatchString(ln) {
			continue
		}
		if m := reItemFull.FindStringSubmatch(ln); m != nil {
			qty, _ := strconv.Atoi(m[2])
			unit, okU := parseAmount(m[3])
			total, okT := parseAmount(m[4])
			if okU && okT && qty > 0 {
				items = append(items, entity.LineItem{
					Description: strings.TrimSpace(m[1]),
					Quantity:    qty,
					UnitPrice:   unit,
					Total:       total,
				})
				continue
			}
		}
		if m := reItemShort.FindStringSubmatch(ln); m != nil {
			price, ok := parseAmount(m[2])
			if ok {
				items = append(items, entity.LineItem{
					Description: strings.TrimSpace(m[1]),
					Quantity:    1,
					UnitPrice:   price,
					Total:       price,
				})
			}
		}
	}
	return items
}
