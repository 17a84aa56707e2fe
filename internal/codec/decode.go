// Package codec turns raw response bodies into generic JSON documents and
// walks them.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/kailas-cloud/catalog/internal/domain"
)

const opDecode = "decode"

// Decode parses a JSON body into a generic document (maps, slices, scalars).
// Empty input, invalid UTF-8, syntax errors, trailing garbage and a literal
// null are all KindDecode failures.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.Errorf(domain.KindDecode, opDecode, "cannot decode empty body")
	}
	if !utf8.Valid(data) {
		return nil, domain.Errorf(domain.KindDecode, opDecode,
			"body is not valid UTF-8 (near byte %d)", invalidUTF8Offset(data))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, syntaxError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, domain.Errorf(domain.KindDecode, opDecode,
			"unexpected data after document at offset %d", dec.InputOffset())
	}
	if doc == nil {
		return nil, domain.Errorf(domain.KindDecode, opDecode, "document is null")
	}
	return doc, nil
}

func syntaxError(err error) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		return domain.NewError(domain.KindDecode, opDecode,
			fmt.Sprintf("syntax error at offset %d", se.Offset), err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.NewError(domain.KindDecode, opDecode, "truncated document", err)
	}
	return domain.NewError(domain.KindDecode, opDecode, "", err)
}

func invalidUTF8Offset(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}
