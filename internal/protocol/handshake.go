package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
)

// The handshake exchanges fixed-size structs encrypted under a well-known
// default key. The client opens with Hi; the server answers Hello, carrying
// the freshly generated session key every later message is ciphered with.
const (
	// DefaultKey encrypts only the hi/hello exchange.
	DefaultKey uint32 = 0x5A4B4559 // "ZKEY"

	// HiSignature marks the client hello struct.
	HiSignature uint32 = 0x7A486921 // "zHi!"

	// ProtocolVersion is the single legacy protocol revision the server
	// speaks.
	ProtocolVersion uint32 = 2

	hiSize    = 36
	helloSize = 20

	// MachineIDLen is the length of the opaque client machine identifier.
	MachineIDLen = 16
)

var (
	ErrBadHi      = errors.New("protocol: malformed hi struct")
	ErrBadVersion = errors.New("protocol: unsupported protocol version")
)

// Hi is the client's opening struct.
type Hi struct {
	Signature  uint32
	Version    uint32
	ProductSig uint32
	Options    uint32
	ClientKey  uint32
	MachineID  [MachineIDLen]byte
}

// Hello is the server's reply: the negotiated session key plus the echoed
// machine identifier.
type Hello struct {
	SessionKey uint32
	MachineID  [MachineIDLen]byte
}

// ReadHi reads and decrypts the client hi struct and validates its signature
// and version.
func ReadHi(r io.Reader) (Hi, error) {
	buf := make([]byte, hiSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Hi{}, err
	}
	cipher(buf, OpenKey(DefaultKey))

	var hi Hi
	hi.Signature = binary.BigEndian.Uint32(buf[0:])
	hi.Version = binary.BigEndian.Uint32(buf[4:])
	hi.ProductSig = binary.BigEndian.Uint32(buf[8:])
	hi.Options = binary.BigEndian.Uint32(buf[12:])
	hi.ClientKey = binary.BigEndian.Uint32(buf[16:])
	copy(hi.MachineID[:], buf[20:])

	if hi.Signature != HiSignature {
		return Hi{}, ErrBadHi
	}
	if hi.Version != ProtocolVersion {
		return Hi{}, ErrBadVersion
	}
	return hi, nil
}

// EncodeHi serializes and encrypts a hi struct. Used by clients and tests.
func EncodeHi(hi Hi) []byte {
	buf := make([]byte, hiSize)
	binary.BigEndian.PutUint32(buf[0:], hi.Signature)
	binary.BigEndian.PutUint32(buf[4:], hi.Version)
	binary.BigEndian.PutUint32(buf[8:], hi.ProductSig)
	binary.BigEndian.PutUint32(buf[12:], hi.Options)
	binary.BigEndian.PutUint32(buf[16:], hi.ClientKey)
	copy(buf[20:], hi.MachineID[:])
	cipher(buf, SealKey(DefaultKey))
	return buf
}

// WriteHello encrypts and writes the server hello.
func WriteHello(w io.Writer, hello Hello) error {
	buf := make([]byte, helloSize)
	binary.BigEndian.PutUint32(buf[0:], hello.SessionKey)
	copy(buf[4:], hello.MachineID[:])
	cipher(buf, SealKey(DefaultKey))
	_, err := w.Write(buf)
	return err
}

// ReadHello reads and decrypts a server hello. Used by clients and tests.
func ReadHello(r io.Reader) (Hello, error) {
	buf := make([]byte, helloSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Hello{}, err
	}
	cipher(buf, OpenKey(DefaultKey))
	var hello Hello
	hello.SessionKey = binary.BigEndian.Uint32(buf[0:])
	copy(hello.MachineID[:], buf[4:])
	return hello, nil
}

// NewSessionKey draws a uniformly random 32-bit session key from the supplied
// source. The key is immutable for the session's lifetime.
func NewSessionKey(rng *rand.Rand) uint32 {
	return rng.Uint32()
}
