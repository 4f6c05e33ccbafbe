// Package assets provides the index template and server bundle sources
package assets

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// LookupCharset resolves a charset label such as "UTF-8" or "ISO-8859-1"
func LookupCharset(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", name, err)
	}
	return enc, nil
}

// Decode converts data from charset to a UTF-8 string
func Decode(data []byte, charset string) (string, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s content: %w", charset, err)
	}
	return string(out), nil
}

// Encode converts s to charset. Characters the charset cannot represent
// are replaced rather than rejected.
func Encode(s string, charset string) ([]byte, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s content: %w", charset, err)
	}
	return out, nil
}
