package display

import (
	"fmt"
	"io"

	"github.com/backmassage/vid2audio/internal/term"
)

const banner = `       _     _ ____                 _ _
__   _(_) __| |___ \ __ _ _   _  __| (_) ___
\ \ / / |/ _` + "`" + ` | __) / _` + "`" + ` | | | |/ _` + "`" + ` | |/ _ \
 \ V /| | (_| |/ __/ (_| | |_| | (_| | | (_) |
  \_/ |_|\__,_|_____\__,_|\__,_|\__,_|_|\___/
`

// PrintBanner writes the ASCII art banner, in magenta when colors are on.
func PrintBanner(w io.Writer) {
	if term.Enabled() {
		term.Magenta.Fprint(w, banner)
	} else {
		fmt.Fprint(w, banner)
	}
	fmt.Fprintln(w)
}
