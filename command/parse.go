package command

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/grovetools/deskd/errors"
)

// ParseInt returns the first whitespace separated token of out as an
// integer. Empty output is a data error.
func ParseInt(out []byte) (int64, error) {
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return 0, errors.DataInvalid("command output", errors.New(errors.ErrCodeDataInvalid, "not a number"))
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, errors.DataInvalid("command output", err)
	}
	return n, nil
}

// ParseInts parses the first whitespace separated token of every
// non-blank line. Any line that does not start with an integer fails the
// whole parse.
func ParseInts(out []byte) ([]int64, error) {
	var result []int64
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, errors.DataInvalid("command output", err)
		}
		result = append(result, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.DataInvalid("command output", err)
	}
	return result, nil
}
