package main

import "github.com/saisandeepramavath/LaneChangeDecision/internal/cli"

func main() {
	cli.Execute()
}
