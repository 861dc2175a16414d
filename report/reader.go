package report

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Read loads a report from path.  The file may hold a JSON array as written
// by WriteFile, JSON Lines as written by LineWriter, or JSON objects
// concatenated back to back.
func Read(path string) (Report, error) {

	f, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("error opening report: %w", err)
	}

	defer f.Close()

	rep, err := Decode(f)

	if err != nil {
		return nil, fmt.Errorf("error reading report %s: %w", path, err)
	}

	return rep, nil
}

// Decode reads a report in any of the formats Read accepts
func Decode(r io.Reader) (Report, error) {

	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)

	if errors.Is(err, io.EOF) {
		return Report{}, nil
	}

	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)

	if first == '[' {
		var rep Report

		if err := dec.Decode(&rep); err != nil {
			return nil, err
		}

		if rep == nil {
			rep = Report{}
		}

		return rep, nil
	}

	rep := Report{}

	for {
		var e Entry

		err := dec.Decode(&e)

		if errors.Is(err, io.EOF) {
			return rep, nil
		}

		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", len(rep), err)
		}

		rep = append(rep, e)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()

		if err != nil {
			return 0, err
		}

		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
