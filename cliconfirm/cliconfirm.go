// Package cliconfirm implements the y/N confirmation prompt the restore
// subcommand shows before overwriting live plugin files, since a restore is
// the one CLI operation that silently clobbers data outside AutoQAC's own
// managed directories.
package cliconfirm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm writes prompt (with " [y/N]: " appended) to out, reads one line
// from in, and reports whether the answer was an affirmative y/yes.
func Confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
