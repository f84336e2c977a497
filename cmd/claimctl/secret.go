package main

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/MuriData/zkclaim/pkg/field"
	"github.com/urfave/cli/v2"
)

// readSecretKey resolves the claim secret key strictly from env, an
// owner-only-permission file, or stdin — never from argv, where it would
// be visible in process listings and shell history (spec.md §6).
func readSecretKey(c *cli.Context) (*field.ParsedElement, error) {
	if v := os.Getenv("ZKCLAIM_SECRET_KEY"); v != "" {
		return field.ParseElement(strings.TrimSpace(v))
	}

	if path := c.String("secret-key-file"); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat secret key file: %w", err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm()&0077 != 0 {
			return nil, fmt.Errorf("secret key file %s is readable by group/other; chmod 600 it first", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read secret key file: %w", err)
		}
		return field.ParseElement(strings.TrimSpace(string(data)))
	}

	if c.Bool("stdin") {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("read secret key from stdin: %w", err)
		}
		return field.ParseElement(strings.TrimSpace(line))
	}

	return nil, fmt.Errorf("no secret key source given: set ZKCLAIM_SECRET_KEY, pass --secret-key-file, or pass --stdin")
}
