package main

import "github.com/oshokin/ant-controller/cmd/antctrl-server/cmd"

func main() {
	cmd.Execute()
}
