package main

import "github.com/frahmantamala/moviemix/cmd"

func main() {
	cmd.Execute()
}
