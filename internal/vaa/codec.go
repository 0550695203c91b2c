package vaa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	headerLen    = 6
	signatureLen = 66
	bodyFixedLen = 51

	// recovery ids are stored raw on the wire and normalized by this offset
	recoveryOffset = 27
	maxRecoveryID  = 3
)

// ErrMalformedVAA reports structurally invalid VAA bytes.
var ErrMalformedVAA = errors.New("malformed VAA")

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) next(n int, field string) ([]byte, error) {
	if n > len(c.data)-c.off {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
			ErrMalformedVAA, field, n, c.off, len(c.data)-c.off)
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) uint8(field string) (uint8, error) {
	b, err := c.next(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *cursor) uint16(field string) (uint16, error) {
	b, err := c.next(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) uint32(field string) (uint32, error) {
	b, err := c.next(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *cursor) uint64(field string) (uint64, error) {
	b, err := c.next(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *cursor) word(field string) (w [32]byte, err error) {
	b, err := c.next(32, field)
	if err != nil {
		return w, err
	}
	copy(w[:], b)
	return w, nil
}

// Decode parses a VAA and requires signatures to be sorted by strictly
// ascending guardian index.
func Decode(data []byte) (*VAA, error) {
	v, err := DecodePermissive(data)
	if err != nil {
		return nil, err
	}
	if err := v.validateSignatureOrder(); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodePermissive parses a VAA without checking signature ordering.
// Meant for diagnostics on messages that may not verify on-chain.
func DecodePermissive(data []byte) (*VAA, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the %d byte header", ErrMalformedVAA, len(data), headerLen)
	}

	c := &cursor{data: data}
	v := &VAA{}
	v.Version, _ = c.uint8("version")
	v.GuardianSetIndex, _ = c.uint32("guardian set index")
	count, _ := c.uint8("signature count")

	bodyStart := headerLen + int(count)*signatureLen
	if bodyStart > len(data) {
		return nil, fmt.Errorf("%w: %d signatures end at offset %d beyond %d bytes",
			ErrMalformedVAA, count, bodyStart, len(data))
	}

	v.Signatures = make([]Signature, 0, count)
	for i := 0; i < int(count); i++ {
		var sig Signature
		sig.GuardianIndex, _ = c.uint8("guardian index")
		sig.R, _ = c.word("signature r")
		sig.S, _ = c.word("signature s")
		raw, _ := c.uint8("signature v")
		if raw > maxRecoveryID {
			return nil, fmt.Errorf("%w: signature %d has recovery id %d", ErrMalformedVAA, i, raw)
		}
		sig.V = raw + recoveryOffset
		v.Signatures = append(v.Signatures, sig)
	}

	v.Hash = doubleHash(data[bodyStart:])

	var err error
	if v.Timestamp, err = c.uint32("timestamp"); err != nil {
		return nil, err
	}
	if v.Nonce, err = c.uint32("nonce"); err != nil {
		return nil, err
	}
	if v.EmitterChainID, err = c.uint16("emitter chain"); err != nil {
		return nil, err
	}
	if v.EmitterAddress, err = c.word("emitter address"); err != nil {
		return nil, err
	}
	if v.Sequence, err = c.uint64("sequence"); err != nil {
		return nil, err
	}
	if v.ConsistencyLevel, err = c.uint8("consistency level"); err != nil {
		return nil, err
	}

	rest := data[c.off:]
	v.Payload = make([]byte, len(rest))
	copy(v.Payload, rest)

	return v, nil
}

func (v *VAA) validateSignatureOrder() error {
	for i := 1; i < len(v.Signatures); i++ {
		prev, cur := v.Signatures[i-1].GuardianIndex, v.Signatures[i].GuardianIndex
		if cur <= prev {
			return fmt.Errorf("%w: guardian index %d at position %d does not follow %d",
				ErrMalformedVAA, cur, i, prev)
		}
	}
	return nil
}

// Encode serializes v. The Hash field is ignored.
func Encode(v *VAA) ([]byte, error) {
	if len(v.Signatures) > math.MaxUint8 {
		return nil, fmt.Errorf("cannot encode %d signatures", len(v.Signatures))
	}

	out := make([]byte, 0, headerLen+len(v.Signatures)*signatureLen+bodyFixedLen+len(v.Payload))
	out = append(out, v.Version)
	out = binary.BigEndian.AppendUint32(out, v.GuardianSetIndex)
	out = append(out, uint8(len(v.Signatures)))

	for i, sig := range v.Signatures {
		if sig.V < recoveryOffset || sig.V > recoveryOffset+maxRecoveryID {
			return nil, fmt.Errorf("signature %d: v %d is not a normalized recovery id", i, sig.V)
		}
		out = append(out, sig.GuardianIndex)
		out = append(out, sig.R[:]...)
		out = append(out, sig.S[:]...)
		out = append(out, sig.V-recoveryOffset)
	}

	return appendBody(out, v), nil
}

func appendBody(out []byte, v *VAA) []byte {
	out = binary.BigEndian.AppendUint32(out, v.Timestamp)
	out = binary.BigEndian.AppendUint32(out, v.Nonce)
	out = binary.BigEndian.AppendUint16(out, v.EmitterChainID)
	out = append(out, v.EmitterAddress[:]...)
	out = binary.BigEndian.AppendUint64(out, v.Sequence)
	out = append(out, v.ConsistencyLevel)
	return append(out, v.Payload...)
}
