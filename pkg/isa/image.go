package isa

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is the current image format version.
const ImageVersion = 1

// Image is a compiled program in binary form.
type Image struct {
	Version   uint          `cbor:"1,keyasint"`
	ID        string        `cbor:"2,keyasint"`
	Registers int           `cbor:"3,keyasint"`
	Code      []Instruction `cbor:"4,keyasint"`
	Source    string        `cbor:"5,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("isa: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewImage decodes p into an image.
func NewImage(id string, registers int, p *Program) (*Image, error) {
	code, err := p.Decode()
	if err != nil {
		return nil, err
	}
	return &Image{Version: ImageVersion, ID: id, Registers: registers, Code: code}, nil
}

// MarshalImage serializes an Image to CBOR bytes.
func MarshalImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("isa: unmarshal image: %w", err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("isa: unsupported image version %d", img.Version)
	}
	for i, in := range img.Code {
		if !in.Op.Valid() {
			return nil, fmt.Errorf("isa: invalid opcode 0x%02X at %d", byte(in.Op), i)
		}
	}
	return &img, nil
}

// Text renders the image's code as program text.
func (img *Image) Text() string {
	p := NewProgram()
	for _, in := range img.Code {
		p.lines = append(p.lines, in.String())
	}
	return p.String()
}
