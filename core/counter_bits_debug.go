//go:build drtdebug

package core

const (
	costBits      = 16
	debugCounters = true
)

type counter = uint16
