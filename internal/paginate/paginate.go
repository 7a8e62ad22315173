// Package paginate はメモリ上の一覧に対するページ分割と絞り込みを提供する。
package paginate

import "github.com/samber/lo"

// DefaultPerPage は1ページあたりのデフォルト件数。
const DefaultPerPage = 10

// Page はページ分割された一覧の1ページ分。
type Page[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	PerPage    int  `json:"perPage"`
	TotalItems int  `json:"totalItems"`
	TotalPages int  `json:"totalPages"`
	HasPrev    bool `json:"hasPrev"`
	HasNext    bool `json:"hasNext"`
}

// Paginate はitemsから指定ページを切り出す。ページ番号は1始まり。
// 範囲外のページ番号は最初または最後のページに丸める。
// perPageが0以下の場合はDefaultPerPageを使用する。
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	page = lo.Clamp(page, 1, totalPages)

	start := (page - 1) * perPage
	end := min(start+perPage, total)

	pageItems := make([]T, end-start)
	copy(pageItems, items[start:end])

	return Page[T]{
		Items:      pageItems,
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}

// Filter はpredicateを満たす要素のみを返す。predicateがnilの場合はitemsをそのまま返す。
func Filter[T any](items []T, predicate func(T) bool) []T {
	if predicate == nil {
		return items
	}
	return lo.Filter(items, func(item T, _ int) bool {
		return predicate(item)
	})
}
