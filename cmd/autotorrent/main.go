// Command autotorrent locates already-downloaded files matching a new
// torrent's layout and hands a staged copy to a torrent client without
// re-downloading, the way the original autotorrent project does.
package main

import (
	"fmt"
	"os"

	"github.com/JohnDoee/autotorrent/cmd/autotorrent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
