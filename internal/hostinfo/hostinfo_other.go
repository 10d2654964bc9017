// +build !linux

package hostinfo

import "errors"

var errUnsupported = errors.New("block device queries are only supported on linux")

func sectorSize(path string) (uint32, error) {
	return 0, errUnsupported
}

func mediaSize(path string) (uint64, error) {
	return 0, errUnsupported
}

func backingSectorSize(path string) (uint32, error) {
	return DefaultSectorSize, nil
}
