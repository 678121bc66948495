package main

import "x402index/internal/cli"

func main() {
	cli.Execute()
}
