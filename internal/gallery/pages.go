package gallery

import (
	"fmt"
	"strings"
)

// ListingPages returns the URLs of listing pages 1..total in index order.
// Page 1 is the base URL itself; later pages live under /page/N/.
func ListingPages(baseURL string, total int) []string {
	base := strings.TrimRight(baseURL, "/")
	pages := make([]string, 0, max(total, 0))
	for i := 1; i <= total; i++ {
		if i == 1 {
			pages = append(pages, base+"/")
			continue
		}
		pages = append(pages, fmt.Sprintf("%s/page/%d/", base, i))
	}
	return pages
}
