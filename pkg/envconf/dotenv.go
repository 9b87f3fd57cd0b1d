package envconf

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadWithDotenv reads the given .env files into the process environment (variables
// already set win over the files) and then calls Load. Missing files are skipped.
func LoadWithDotenv(dst any, files ...string) error {
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	return Load(dst)
}
