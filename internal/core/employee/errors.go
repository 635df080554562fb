package employee

import "errors"

var (
	ErrInvalidID        = errors.New("employee: invalid id")
	ErrInvalidName      = errors.New("employee: invalid name")
	ErrInvalidAge       = errors.New("employee: invalid age")
	ErrInvalidPage      = errors.New("employee: invalid page")
	ErrInvalidPageSize  = errors.New("employee: invalid page size")
	ErrInvalidSortField = errors.New("employee: invalid sort field")
	ErrEmployeeNotFound = errors.New("employee: not found")
	// ErrCanceled は後続の同一リクエストや呼び出し元によって通信が中断されたことを表します。
	// データエラーとしては扱いません。
	ErrCanceled = errors.New("employee: request canceled")
)
