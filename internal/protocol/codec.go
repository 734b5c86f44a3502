package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

// Wire layout of one message group, all fields big-endian:
//
//	generic header (16B): signature | totalLen | sequence | checksum
//	app header     (12B): phase signature | message type | payload length
//	payload:              payloadLen bytes, zero-padded to a 4-byte boundary
//	footer          (4B): accept/cancel status, never encrypted
//
// The generic header, app header and padded payload are XOR-ciphered 32-bit
// word by word against the session key. totalLen counts everything except the
// footer. The checksum covers the plaintext app header plus padded payload.
const (
	genericHeaderSize = 16
	appHeaderSize     = 12
	footerSize        = 4

	// GenericSignature marks every legacy envelope.
	GenericSignature uint32 = 0x5A4F4E45 // "ZONE"

	// MaxPayload bounds a single message's payload.
	MaxPayload = 1 << 16

	checksumSeed uint32 = 0x5A435253
)

// Footer status values.
const (
	StatusAccept uint32 = 0x00000001
	StatusCancel uint32 = 0xFFFFFFFF
)

// Framing errors. All of them are session-fatal for the connection that
// produced them.
var (
	ErrBadSignature    = errors.New("protocol: bad envelope signature")
	ErrLength          = errors.New("protocol: length mismatch")
	ErrChecksum        = errors.New("protocol: checksum mismatch")
	ErrCancelled       = errors.New("protocol: cancelled footer status")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)

// SealKey returns the keystream word used when encrypting: the session key
// normalized to network byte order.
func SealKey(key uint32) uint32 { return bits.ReverseBytes32(key) }

// OpenKey returns the keystream word used when decrypting. Both directions
// normalize the key the same way, so decode(encode(p)) round-trips.
func OpenKey(key uint32) uint32 { return bits.ReverseBytes32(key) }

// cipher XORs successive big-endian 32-bit words of buf against the prepared
// keystream word. buf must be a whole number of words; XOR is its own inverse
// so the same call encrypts and decrypts.
func cipher(buf []byte, keyWord uint32) {
	for i := 0; i+4 <= len(buf); i += 4 {
		w := binary.BigEndian.Uint32(buf[i:])
		binary.BigEndian.PutUint32(buf[i:], w^keyWord)
	}
}

// checksum XOR-folds big-endian 32-bit words seeded with a fixed constant,
// then normalizes the result to network byte order.
func checksum(buf []byte) uint32 {
	sum := checksumSeed
	for i := 0; i+4 <= len(buf); i += 4 {
		sum ^= binary.BigEndian.Uint32(buf[i:])
	}
	return bits.ReverseBytes32(sum)
}

func paddedLen(n int) int { return (n + 3) &^ 3 }

// Encode builds one encrypted message group. It succeeds for any payload
// whose length fits the length field (bounded by MaxPayload).
func Encode(phase Phase, msgType uint32, payload []byte, key uint32, seq uint32) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	padded := paddedLen(len(payload))
	totalLen := genericHeaderSize + appHeaderSize + padded
	buf := make([]byte, totalLen+footerSize)

	// App header + payload first; the checksum is computed over their
	// plaintext before the generic header is filled in.
	binary.BigEndian.PutUint32(buf[16:], phase.signature())
	binary.BigEndian.PutUint32(buf[20:], msgType)
	binary.BigEndian.PutUint32(buf[24:], uint32(len(payload)))
	copy(buf[28:], payload)
	sum := checksum(buf[genericHeaderSize:totalLen])

	binary.BigEndian.PutUint32(buf[0:], GenericSignature)
	binary.BigEndian.PutUint32(buf[4:], uint32(totalLen))
	binary.BigEndian.PutUint32(buf[8:], seq)
	binary.BigEndian.PutUint32(buf[12:], sum)

	cipher(buf[:totalLen], SealKey(key))
	binary.BigEndian.PutUint32(buf[totalLen:], StatusAccept)
	return buf, nil
}

// Decode validates and decrypts a complete message group. The input is not
// modified. The sequence field is deliberately not validated: the transport
// is ordered and reliable, and the receiver trusts sender ordering.
func Decode(buf []byte, phase Phase, key uint32) (msgType uint32, payload []byte, err error) {
	if len(buf) < genericHeaderSize+appHeaderSize+footerSize {
		return 0, nil, ErrLength
	}
	work := make([]byte, len(buf))
	copy(work, buf)
	cipher(work[:len(work)-footerSize], OpenKey(key))

	if binary.BigEndian.Uint32(work[0:]) != GenericSignature {
		return 0, nil, ErrBadSignature
	}
	totalLen := int(binary.BigEndian.Uint32(work[4:]))
	if totalLen != len(work)-footerSize {
		return 0, nil, ErrLength
	}
	wantSum := binary.BigEndian.Uint32(work[12:])

	if binary.BigEndian.Uint32(work[16:]) != phase.signature() {
		return 0, nil, ErrBadSignature
	}
	msgType = binary.BigEndian.Uint32(work[20:])
	payloadLen := int(binary.BigEndian.Uint32(work[24:]))
	if payloadLen > MaxPayload || genericHeaderSize+appHeaderSize+paddedLen(payloadLen) != totalLen {
		return 0, nil, ErrLength
	}
	if checksum(work[genericHeaderSize:totalLen]) != wantSum {
		return 0, nil, ErrChecksum
	}
	if binary.BigEndian.Uint32(work[totalLen:]) != StatusAccept {
		return 0, nil, ErrCancelled
	}
	return msgType, work[28 : 28+payloadLen], nil
}

// ReadMessage frames the next real application message off the stream,
// transparently skipping keep-alive messages (consuming their footers too).
func ReadMessage(r io.Reader, phase Phase, key uint32) (msgType uint32, payload []byte, err error) {
	for {
		header := make([]byte, genericHeaderSize)
		if _, err := io.ReadFull(r, header); err != nil {
			return 0, nil, err
		}
		plainHeader := make([]byte, genericHeaderSize)
		copy(plainHeader, header)
		cipher(plainHeader, OpenKey(key))
		if binary.BigEndian.Uint32(plainHeader[0:]) != GenericSignature {
			return 0, nil, ErrBadSignature
		}
		totalLen := int(binary.BigEndian.Uint32(plainHeader[4:]))
		if totalLen < genericHeaderSize+appHeaderSize ||
			totalLen > genericHeaderSize+appHeaderSize+paddedLen(MaxPayload) {
			return 0, nil, fmt.Errorf("%w: total length %d", ErrLength, totalLen)
		}

		rest := make([]byte, totalLen-genericHeaderSize+footerSize)
		if _, err := io.ReadFull(r, rest); err != nil {
			return 0, nil, err
		}
		full := append(header, rest...)
		msgType, payload, err = Decode(full, phase, key)
		if err != nil {
			return 0, nil, err
		}
		if msgType == MsgKeepAlive {
			continue
		}
		return msgType, payload, nil
	}
}
