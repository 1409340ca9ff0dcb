package client

// PageSize は商品一覧の1ページあたりの件数。
const PageSize = 12

// maxPageButtons はページャーに表示するページ番号の最大数。
const maxPageButtons = 5

// SkipForPage は1始まりのページ番号に対応するskip値を返す。
func SkipForPage(page, size int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * size
}

// TotalPages は総件数とページサイズから総ページ数を返す。
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// HasNextPage は次のページが存在するかを返す。
func HasNextPage(skip, size, total int) bool {
	return skip+size < total
}

// PageWindow はページャーに表示するページ番号を返す。
// 総ページ数が1以下の場合はページャーを表示しないためnilを返す。
func PageWindow(current, totalPages int) []int {
	if totalPages <= 1 {
		return nil
	}
	n := min(maxPageButtons, totalPages)
	pages := make([]int, n)
	for i := range n {
		switch {
		case totalPages <= maxPageButtons:
			pages[i] = i + 1
		case current <= 3:
			pages[i] = i + 1
		case current >= totalPages-2:
			pages[i] = totalPages - 4 + i
		default:
			pages[i] = current - 2 + i
		}
	}
	return pages
}

// PageRange は「skip+1件目からend件目」の表示範囲を返す。
func PageRange(skip, size, total int) (from, to int) {
	if total == 0 {
		return 0, 0
	}
	return skip + 1, min(skip+size, total)
}
