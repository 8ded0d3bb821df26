package main

import "github.com/iangodin/dhcpdb/cli"

func main() {
	cli.CLI()
}
