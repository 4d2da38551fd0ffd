package pkg

import (
	"encoding/binary"
	"fmt"
)

func Uint32ToBytes(num uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, num)
	return b
}

func BytesToUint32(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("input byte slice should have length 4, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

func BoolToBytes(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

func BytesToBool(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, fmt.Errorf("input byte slice should have length 1")
	}
	if b[0] == 1 {
		return true, nil
	} else if b[0] == 0 {
		return false, nil
	}
	return false, fmt.Errorf("input byte slice should contain 0 or 1")
}
