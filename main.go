package main

import "github.com/qrave1/PeerCall/cmd"

func main() {
	cmd.Execute()
}
