package main

import (
	_ "time/tzdata"

	"github.com/lkschedule/schedule-sync/internal/cli"
)

func main() {
	cli.Execute()
}
