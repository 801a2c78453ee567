package crypto

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rfqsettle/core/types"
)

// Layout of the Ed25519 verification instruction data:
//
//	[0]      number of signatures
//	[1]      padding
//	[2..16)  seven little-endian u16 offsets for the first signature
//	[16..)   public key, signature and message bytes
const (
	Ed25519OffsetsStart   = 2
	Ed25519OffsetsSize    = 14
	Ed25519HeaderSize     = Ed25519OffsetsStart + Ed25519OffsetsSize
	Ed25519MinDataSize    = Ed25519HeaderSize + ed25519.PublicKeySize + ed25519.SignatureSize
	Ed25519CurrentIxIndex = 0xFFFF
)

// Ed25519ProgramID identifies the native signature verification program.
var Ed25519ProgramID = types.BytesToAddress(ethcrypto.Keccak256([]byte("Ed25519SigVerify111111111111111111111111111")))

var errShortInstruction = errors.New("crypto: instruction data shorter than offsets header")

// Instruction is one step of an atomic transaction as seen by introspection.
type Instruction struct {
	ProgramID types.Address
	Data      []byte
}

// Ed25519Offsets is the decoded header of a single-signature verification
// instruction.
type Ed25519Offsets struct {
	SignatureOffset  uint16
	SignatureIxIndex uint16
	PublicKeyOffset  uint16
	PublicKeyIxIndex uint16
	MessageOffset    uint16
	MessageSize      uint16
	MessageIxIndex   uint16
}

// ReadEd25519Offsets decodes the offsets of the first signature. The caller is
// responsible for validating the offsets against the data length.
func ReadEd25519Offsets(data []byte) (Ed25519Offsets, error) {
	if len(data) < Ed25519HeaderSize {
		return Ed25519Offsets{}, errShortInstruction
	}
	le := binary.LittleEndian
	base := Ed25519OffsetsStart
	return Ed25519Offsets{
		SignatureOffset:  le.Uint16(data[base:]),
		SignatureIxIndex: le.Uint16(data[base+2:]),
		PublicKeyOffset:  le.Uint16(data[base+4:]),
		PublicKeyIxIndex: le.Uint16(data[base+6:]),
		MessageOffset:    le.Uint16(data[base+8:]),
		MessageSize:      le.Uint16(data[base+10:]),
		MessageIxIndex:   le.Uint16(data[base+12:]),
	}, nil
}

// Encode renders the offsets header for a single signature.
func (o Ed25519Offsets) Encode() []byte {
	out := make([]byte, Ed25519HeaderSize)
	out[0] = 1
	le := binary.LittleEndian
	base := Ed25519OffsetsStart
	le.PutUint16(out[base:], o.SignatureOffset)
	le.PutUint16(out[base+2:], o.SignatureIxIndex)
	le.PutUint16(out[base+4:], o.PublicKeyOffset)
	le.PutUint16(out[base+6:], o.PublicKeyIxIndex)
	le.PutUint16(out[base+8:], o.MessageOffset)
	le.PutUint16(out[base+10:], o.MessageSize)
	le.PutUint16(out[base+12:], o.MessageIxIndex)
	return out
}

// NewEd25519Instruction builds a verification instruction whose offsets all
// point into its own data: public key, then signature, then message.
func NewEd25519Instruction(pubKey []byte, msg []byte, sig []byte) Instruction {
	pkOffset := Ed25519HeaderSize
	sigOffset := pkOffset + len(pubKey)
	msgOffset := sigOffset + len(sig)
	offsets := Ed25519Offsets{
		SignatureOffset:  uint16(sigOffset),
		SignatureIxIndex: Ed25519CurrentIxIndex,
		PublicKeyOffset:  uint16(pkOffset),
		PublicKeyIxIndex: Ed25519CurrentIxIndex,
		MessageOffset:    uint16(msgOffset),
		MessageSize:      uint16(len(msg)),
		MessageIxIndex:   Ed25519CurrentIxIndex,
	}
	data := offsets.Encode()
	data = append(data, pubKey...)
	data = append(data, sig...)
	data = append(data, msg...)
	return Instruction{ProgramID: Ed25519ProgramID, Data: data}
}

// SignEd25519Instruction signs msg with key and wraps the result into a
// verification instruction. It also returns the raw signature.
func SignEd25519Instruction(key *PrivateKey, msg []byte) (Instruction, [ed25519.SignatureSize]byte) {
	sig := key.Sign(msg)
	return NewEd25519Instruction(key.PubKey().PublicKey, msg, sig[:]), sig
}
