package main

import "github.com/kickslayer1/bigdatahacathon-2025/internal/cli"

func main() {
	cli.Execute()
}
