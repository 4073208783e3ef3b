// Package sql - outbound коннектор для выполнения SQL запросов через database/sql.
//
// По умолчанию используется драйвер postgres (github.com/lib/pq).
// data.returnResults=true выполняет запрос как выборку и возвращает resultSet,
// иначе возвращается число изменённых строк (modifiedRows).
package sql
