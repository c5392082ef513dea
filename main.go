package main

import "github.com/cachelink/cachelink-go/cmd"

func main() {
	cmd.Execute()
}
