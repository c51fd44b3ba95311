//go:build !linux

package main

import (
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

func forward(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(sig)
}
