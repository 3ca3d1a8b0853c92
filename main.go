package main

import "github.com/ValentinKolb/dBridge/cmd"

func main() {
	cmd.Execute()
}
