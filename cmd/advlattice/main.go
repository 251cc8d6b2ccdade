// advlattice decides security claims across a lattice of adversary models.
package main

import "github.com/ppiankov/advlattice/internal/cli"

func main() {
	cli.Execute()
}
