// Package main implements the janus command, which inspects and modifies
// machine-identifying attributes behind transactional backups and staged
// confirmation.
package main

import (
	"os"

	"github.com/ilexum-group/janus/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
