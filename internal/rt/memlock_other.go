//go:build !linux

package rt

func newPlatformPinner() MemoryPinner {
	return NopMemoryPinner{}
}
