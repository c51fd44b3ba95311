package main

import (
	"os"

	"golang.org/x/sys/unix"
)

var shutdownSignals = []os.Signal{unix.SIGINT, unix.SIGTERM}

func forward(pid int, sig os.Signal) error {
	s, ok := sig.(unix.Signal)
	if !ok {
		s = unix.SIGTERM
	}
	return unix.Kill(pid, s)
}
