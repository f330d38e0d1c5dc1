package main

import "github.com/vibast-solutions/ms-go-client-billing/cmd"

func main() {
	cmd.Execute()
}
