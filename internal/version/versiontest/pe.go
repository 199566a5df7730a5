// Package versiontest builds Windows executables for tests.
package versiontest

import "encoding/binary"

var le = binary.LittleEndian

const (
	headerSize   = 0x200
	rsrcRVA      = 0x1000
	rsrcFileOff  = 0x200
	rsrcRawSize  = 0x200
	peOffset     = 0x40
	fileHdrLen   = 20
	optHdrLen    = 224
	fixedInfoSig = 0xFEEF04BD
)

// VersionInfo returns a VS_VERSIONINFO resource carrying file version
// a.b.c.d and no child blocks.
func VersionInfo(a, b, c, d uint16) []byte {
	blob := make([]byte, 40+52)
	le.PutUint16(blob[0:], uint16(len(blob)))
	le.PutUint16(blob[2:], 52)
	for i, r := range "VS_VERSION_INFO" {
		blob[6+2*i] = byte(r)
	}
	fixed := blob[40:]
	le.PutUint32(fixed[0:], fixedInfoSig)
	le.PutUint32(fixed[4:], 0x00010000)
	le.PutUint32(fixed[8:], uint32(a)<<16|uint32(b))
	le.PutUint32(fixed[12:], uint32(c)<<16|uint32(d))
	return blob
}

// PE returns a minimal PE32 image whose single .rsrc section holds one
// RT_VERSION resource for a.b.c.d.
func PE(a, b, c, d uint16) []byte {
	return build(VersionInfo(a, b, c, d), nil)
}

// PEWithDecoy is PE plus a second, well-formed VS_VERSIONINFO for decoy
// placed in the header slack, outside any resource.
func PEWithDecoy(a, b, c, d uint16, decoy []byte) []byte {
	return build(VersionInfo(a, b, c, d), decoy)
}

// PEWithoutVersion returns a valid PE32 image with an empty resource
// directory.
func PEWithoutVersion() []byte {
	return build(nil, nil)
}

func build(info, decoy []byte) []byte {
	rsrc := resourceSection(info)

	img := make([]byte, headerSize+rsrcRawSize)
	img[0], img[1] = 'M', 'Z'
	le.PutUint32(img[0x3C:], peOffset)
	copy(img[peOffset:], "PE\x00\x00")

	fh := img[peOffset+4:]
	le.PutUint16(fh[0:], 0x14c) // i386
	le.PutUint16(fh[2:], 1)
	le.PutUint16(fh[16:], optHdrLen)
	le.PutUint16(fh[18:], 0x0102)

	oh := img[peOffset+4+fileHdrLen:]
	le.PutUint16(oh[0:], 0x10b)
	le.PutUint32(oh[28:], 0x400000)
	le.PutUint32(oh[32:], 0x1000)
	le.PutUint32(oh[36:], 0x200)
	le.PutUint16(oh[40:], 4)
	le.PutUint16(oh[48:], 4)
	le.PutUint32(oh[56:], 0x2000)
	le.PutUint32(oh[60:], headerSize)
	le.PutUint16(oh[68:], 2)
	le.PutUint32(oh[92:], 16)
	le.PutUint32(oh[96+2*8:], rsrcRVA)
	le.PutUint32(oh[96+2*8+4:], uint32(len(rsrc)))

	sh := img[peOffset+4+fileHdrLen+optHdrLen:]
	copy(sh[0:8], ".rsrc")
	le.PutUint32(sh[8:], uint32(len(rsrc)))
	le.PutUint32(sh[12:], rsrcRVA)
	le.PutUint32(sh[16:], rsrcRawSize)
	le.PutUint32(sh[20:], rsrcFileOff)
	le.PutUint32(sh[36:], 0x40000040)

	if decoy != nil {
		copy(img[0x180:headerSize], decoy)
	}
	copy(img[rsrcFileOff:], rsrc)
	return img
}

// resourceSection lays out type -> name -> language -> data for RT_VERSION.
func resourceSection(info []byte) []byte {
	rsrc := make([]byte, 0x58)
	if info == nil {
		return rsrc[:16]
	}

	le.PutUint16(rsrc[14:], 1)
	le.PutUint32(rsrc[16:], 16) // RT_VERSION
	le.PutUint32(rsrc[20:], 0x80000000|0x18)

	le.PutUint16(rsrc[0x18+14:], 1)
	le.PutUint32(rsrc[0x28:], 1)
	le.PutUint32(rsrc[0x2C:], 0x80000000|0x30)

	le.PutUint16(rsrc[0x30+14:], 1)
	le.PutUint32(rsrc[0x40:], 0x409)
	le.PutUint32(rsrc[0x44:], 0x48)

	le.PutUint32(rsrc[0x48:], rsrcRVA+0x58)
	le.PutUint32(rsrc[0x4C:], uint32(len(info)))

	return append(rsrc, info...)
}
