package core

import (
	"errors"
	"fmt"
	"os"
)

// SampleInput is a small input exercising empty fields and a mixed value.
const SampleInput = "b11,46556$2525256002$75,,,20030101120220\ntest1,test2,test3\n"

// ErrSampleExists is returned when the sample target already exists.
var ErrSampleExists = errors.New("file already exists")

// WriteSample creates path with SampleInput. An existing file is never
// overwritten.
func WriteSample(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrSampleExists, path)
		}
		return fmt.Errorf("create sample %s: %w", path, err)
	}

	if _, err := f.WriteString(SampleInput); err != nil {
		f.Close()
		return fmt.Errorf("write sample %s: %w", path, err)
	}
	return f.Close()
}
