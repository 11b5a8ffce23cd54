package scale

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// AccountIDSize is the size of an AccountId32 in bytes
	AccountIDSize = 32

	// GenericSS58Prefix is the generic Substrate address format, used by
	// the subtensor chain.
	GenericSS58Prefix = 42

	ss58ChecksumSize = 2
	maxSS58Prefix    = 16383
)

var ss58Context = []byte("SS58PRE")

// EncodeSS58 encodes a 32 byte account id as an SS58 address
func EncodeSS58(accountID []byte, prefix uint16) (string, error) {
	if len(accountID) != AccountIDSize {
		return "", fmt.Errorf("ss58: account id must be %d bytes, got %d",
			AccountIDSize, len(accountID))
	}
	if prefix > maxSS58Prefix {
		return "", fmt.Errorf("ss58: prefix %d out of range", prefix)
	}
	var payload []byte
	if prefix < 64 {
		payload = append(payload, byte(prefix))
	} else {
		payload = append(payload,
			byte((prefix&0b1111_1100)>>2)|0b0100_0000,
			byte(prefix>>8)|byte((prefix&0b11)<<6),
		)
	}
	payload = append(payload, accountID...)
	sum := ss58Checksum(payload)
	payload = append(payload, sum[:ss58ChecksumSize]...)
	return base58.Encode(payload), nil
}

// DecodeSS58 decodes an SS58 address into the account id and network prefix
func DecodeSS58(address string) (accountID []byte, prefix uint16, err error) {
	data, err := base58.Decode(address)
	if err != nil {
		return nil, 0, fmt.Errorf("ss58: %w", err)
	}
	if len(data) < 1 {
		return nil, 0, fmt.Errorf("ss58: empty address")
	}
	prefixLen := 1
	if data[0]&0b0100_0000 != 0 {
		prefixLen = 2
	}
	if len(data) != prefixLen+AccountIDSize+ss58ChecksumSize {
		return nil, 0, fmt.Errorf("ss58: unexpected address length %d", len(data))
	}
	if prefixLen == 1 {
		prefix = uint16(data[0])
	} else {
		lower := (data[0]<<2)&0b1111_1100 | data[1]>>6
		upper := data[1] & 0b0011_1111
		prefix = uint16(lower) | uint16(upper)<<8
	}
	body := data[:prefixLen+AccountIDSize]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:ss58ChecksumSize], data[len(body):]) {
		return nil, 0, fmt.Errorf("ss58: checksum mismatch")
	}
	return body[prefixLen:], prefix, nil
}

func ss58Checksum(payload []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Context)+len(payload))
	buf = append(buf, ss58Context...)
	buf = append(buf, payload...)
	return blake2b.Sum512(buf)
}

// AccountID decodes an AccountId32 and returns its generic SS58 address
func AccountID(d *Decoder) (string, error) {
	b, err := d.Bytes(AccountIDSize)
	if err != nil {
		return "", err
	}
	return EncodeSS58(b, GenericSS58Prefix)
}
