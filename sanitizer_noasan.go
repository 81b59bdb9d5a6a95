//go:build !asan

package isoheap

const asanEnabled = false
