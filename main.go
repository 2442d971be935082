package main

import "studio-booking/cmd"

func main() {
	cmd.Execute()
}
