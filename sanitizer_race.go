//go:build race

package isoheap

const raceEnabled = true
