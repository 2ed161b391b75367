package main

import (
	"suapreport/cmd/suap-cli/commands"
	"suapreport/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
