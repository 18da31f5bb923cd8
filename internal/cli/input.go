package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// readJSON decodes the file at path, or stdin when path is "-".
func readJSON(stdin io.Reader, path string, out any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return invalidInput("cannot open %s: %v", path, err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidInput("cannot decode %s: %v", displayName(path), err)
	}
	return nil
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return fmt.Sprintf("%q", path)
}
