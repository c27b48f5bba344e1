// Command gazette-watch monitors the state official gazette for watched people.
package main

import (
	_ "time/tzdata"

	"github.com/JakeFAU/gazette-watch/cmd"
)

func main() {
	cmd.Execute()
}
