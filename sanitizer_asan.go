//go:build asan

package isoheap

const asanEnabled = true
