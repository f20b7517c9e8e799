package main

import "github.com/deploymenttheory/go-minixfs/cmd"

func main() {
	cmd.Execute()
}
