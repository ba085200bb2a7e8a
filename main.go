package main

import "github.com/ZeljkoBenovic/cpaasctl/cmd"

func main() {
	cmd.Execute()
}
