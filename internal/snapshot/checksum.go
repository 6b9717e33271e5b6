package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

var ErrChecksum = errors.New("snapshot checksum mismatch")

const checksumSalt = "neurotrainer.snapshot.v1"

func Checksum(payload []byte) string {
	d := xxhash.New()
	_, _ = d.Write(payload)
	_, _ = d.WriteString(checksumSalt)
	return strconv.FormatUint(d.Sum64(), 16)
}

func Encode(a *AppData) (payload []byte, sum string, err error) {
	payload, err = json.Marshal(a)
	if err != nil {
		return nil, "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return payload, Checksum(payload), nil
}

// Decode rejects the whole payload when sum does not match.
func Decode(payload []byte, sum string) (*AppData, error) {
	if Checksum(payload) != sum {
		return nil, ErrChecksum
	}
	a := New()
	if err := json.Unmarshal(payload, a); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if a.Users == nil {
		a.Users = make(map[string]*UserData)
	}
	return a, nil
}
