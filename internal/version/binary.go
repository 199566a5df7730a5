package version

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"
)

// minPESize is the smallest file pe will accept as an image.
const minPESize = pe.TinyPESize

// versionInfoKey is "VS_VERSION_INFO" with its terminator, UTF-16LE.
var versionInfoKey = utf16z("VS_VERSION_INFO")

const (
	// versionInfoHeaderLen covers wLength, wValueLength and wType.
	versionInfoHeaderLen = 6

	// fixedFileInfoLen covers dwSignature, dwStrucVersion, dwFileVersionMS
	// and dwFileVersionLS.
	fixedFileInfoLen = 16
)

// peOptions parses headers, sections and the resource tree only.
func peOptions() *pe.Options {
	return &pe.Options{
		Logger:                     pelog.NewStdLogger(io.Discard),
		DisableCertValidation:      true,
		DisableSignatureValidation: true,
		OmitExportDirectory:        true,
		OmitImportDirectory:        true,
		OmitExceptionDirectory:     true,
		OmitSecurityDirectory:      true,
		OmitRelocDirectory:         true,
		OmitDebugDirectory:         true,
		OmitArchitectureDirectory:  true,
		OmitGlobalPtrDirectory:     true,
		OmitTLSDirectory:           true,
		OmitLoadConfigDirectory:    true,
		OmitBoundImportDirectory:   true,
		OmitIATDirectory:           true,
		OmitDelayImportDirectory:   true,
		OmitCLRHeaderDirectory:     true,
		OmitCLRMetadata:            true,
	}
}

// binaryVersion reads the file version from the RT_VERSION resource of the
// PE image at path. The image is memory-mapped, not read into memory.
func binaryVersion(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() < minPESize {
		return "", ErrVersionNotFound
	}

	f, err := pe.New(path, peOptions())
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrVersionNotFound, err)
	}

	for _, blob := range versionResources(f) {
		if v, err := ParseFixedFileVersion(blob); err == nil {
			return v, nil
		}
	}
	return "", ErrVersionNotFound
}

// versionResources returns the raw VS_VERSIONINFO blobs of every RT_VERSION
// entry, in directory order. Entries pointing outside the image are skipped.
func versionResources(f *pe.File) [][]byte {
	var out [][]byte
	for _, typ := range f.Resources.Entries {
		if typ.ID != pe.VersionResourceType || !typ.IsResourceDir {
			continue
		}
		for _, name := range typ.Directory.Entries {
			if !name.IsResourceDir {
				continue
			}
			for _, lang := range name.Directory.Entries {
				if lang.IsResourceDir {
					continue
				}
				data := lang.Data.Struct
				if data.Size == 0 {
					continue
				}
				blob, err := f.ReadBytesAtOffset(f.GetOffsetFromRva(data.OffsetToData), data.Size)
				if err != nil {
					continue
				}
				out = append(out, blob)
			}
		}
	}
	return out
}

// ParseFixedFileVersion decodes the file version from a VS_VERSIONINFO
// resource: the "VS_VERSION_INFO" key, DWORD padding, then VS_FIXEDFILEINFO.
func ParseFixedFileVersion(blob []byte) (string, error) {
	keyEnd := versionInfoHeaderLen + len(versionInfoKey)
	if len(blob) < keyEnd || !bytes.Equal(blob[versionInfoHeaderLen:keyEnd], versionInfoKey) {
		return "", ErrVersionNotFound
	}
	if binary.LittleEndian.Uint16(blob[2:4]) < fixedFileInfoLen {
		return "", ErrVersionNotFound
	}

	start := (keyEnd + 3) &^ 3
	if len(blob) < start+fixedFileInfoLen {
		return "", ErrVersionNotFound
	}
	fixed := blob[start : start+fixedFileInfoLen]
	if binary.LittleEndian.Uint32(fixed[0:4]) != pe.VsFileInfoSignature {
		return "", ErrVersionNotFound
	}

	ms := binary.LittleEndian.Uint32(fixed[8:12])
	ls := binary.LittleEndian.Uint32(fixed[12:16])
	return fmt.Sprintf("%d.%d.%d.%d", ms>>16, ms&0xFFFF, ls>>16, ls&0xFFFF), nil
}

func utf16z(s string) []byte {
	out := make([]byte, 0, len(s)*2+2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return append(out, 0, 0)
}
