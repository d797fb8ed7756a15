//go:build !drtdebug

package core

const (
	costBits      = 8
	debugCounters = false
)

type counter = uint8
