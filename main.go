package main

import "github.com/tldr-it-stepankutaj/reconkit/cmd/reconkit"

func main() {
	reconkit.Execute()
}
