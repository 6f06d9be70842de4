package ingest

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	nifti1HeaderSize = 348
	nifti2HeaderSize = 540
)

// IsNIfTI reports whether name has a NIfTI image extension.
func IsNIfTI(name string) bool {
	return strings.HasSuffix(name, ".nii") || strings.HasSuffix(name, ".nii.gz")
}

// SliceCount reads the number of slices (the third spatial dimension) from
// a NIfTI-1 or NIfTI-2 header. Gzip-compressed images are detected by their
// magic bytes.
func SliceCount(name string, r io.Reader) (int, error) {
	if !IsNIfTI(name) {
		return 0, fmt.Errorf("%w: Invalid file: %s", ErrInvalidFile, name)
	}
	br := bufio.NewReader(r)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidFile, name, err)
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	}

	header := make([]byte, nifti2HeaderSize)
	n, err := io.ReadFull(br, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("%w: %s: read header: %v", ErrInvalidFile, name, err)
	}
	header = header[:n]
	if len(header) < nifti1HeaderSize {
		return 0, fmt.Errorf("%w: %s: header too short", ErrInvalidFile, name)
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		switch int32(order.Uint32(header[:4])) {
		case nifti1HeaderSize:
			// dim is int16[8] at offset 40; dim[0] is the rank.
			return dimension(int(int16(order.Uint16(header[40:]))), int(int16(order.Uint16(header[46:]))), name)
		case nifti2HeaderSize:
			if len(header) < nifti2HeaderSize {
				return 0, fmt.Errorf("%w: %s: header too short", ErrInvalidFile, name)
			}
			// dim is int64[8] at offset 16.
			return dimension(int(int64(order.Uint64(header[16:]))), int(int64(order.Uint64(header[40:]))), name)
		}
	}
	return 0, fmt.Errorf("%w: %s: not a NIfTI header", ErrInvalidFile, name)
}

func dimension(rank, slices int, name string) (int, error) {
	if rank < 3 || slices < 1 {
		return 0, fmt.Errorf("%w: %s: image has no third dimension", ErrInvalidFile, name)
	}
	return slices, nil
}

// SliceCountFile is SliceCount over a file on disk.
func SliceCountFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return SliceCount(path, f)
}
