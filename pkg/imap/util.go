package imap

import (
	"bytes"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

func recipients(header string) ([]string, error) {
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		return nil, fmt.Errorf("invalid recipients %q: %w", header, err)
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Address
	}
	return out, nil
}
