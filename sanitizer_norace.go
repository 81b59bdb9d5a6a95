//go:build !race

package isoheap

const raceEnabled = false
