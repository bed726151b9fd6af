//go:build cgo

package credentials

const cgoEnabled = true
