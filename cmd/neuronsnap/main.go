package main

import (
	"github.com/taoscan/neuronsnap/cmd/neuronsnap/commands"

	// Register export storage backends
	_ "github.com/PowerDNS/simpleblob/backends/fs"
	_ "github.com/PowerDNS/simpleblob/backends/memory"
	_ "github.com/PowerDNS/simpleblob/backends/s3"

	// Register chain storage backends
	_ "github.com/taoscan/neuronsnap/storage/memory"
	_ "github.com/taoscan/neuronsnap/storage/rpc"
)

// version is overridden during the build with the go linker
var version = "dev"

func main() {
	commands.SetVersion(version)
	commands.Execute()
}
