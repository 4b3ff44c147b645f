package main

import "github.com/oshokin/ant-controller/cmd/antctrl/cmd"

func main() {
	cmd.Execute()
}
