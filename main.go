package main

import "fetchbot/cmd"

// version is set during build via -ldflags "-X main.version=X.Y.Z".
var version = "dev"

func main() {
	cmd.Execute(version)
}
