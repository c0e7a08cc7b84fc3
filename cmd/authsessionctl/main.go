package main

import "github.com/MrEthical07/authsession/cmd/authsessionctl/cmd"

func main() {
	cmd.Execute()
}
