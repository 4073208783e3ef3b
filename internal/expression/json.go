package expression

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// DecodeJSON декодирует JSON документ в any.
//
// Числа остаются json.Number: целые больше 2^53 не теряют точность
// ни в переменных процесса, ни в ключах корреляции.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid character after top-level value")
	}
	return v, nil
}

// Number приводит числовое значение к float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
