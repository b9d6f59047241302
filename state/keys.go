package state

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	grantPrefix     = []byte("grant/")
	grantIndexPfx   = []byte("grantidx/")
	grantHeadKey    = []byte("grant/head")
	aggregatesKey   = []byte("aggregates")
	rewardTableKey  = []byte("rewardtable")
	dailyCapKey     = []byte("dailycap")
	rolePrefix      = []byte("role/")
	accountPrefix   = []byte("account/")
	kvPrefix        = []byte("kv/")
	bootstrappedKey = []byte("bootstrapped")
)

func grantKey(id uint64) []byte {
	buf := make([]byte, len(grantPrefix)+8)
	copy(buf, grantPrefix)
	binary.BigEndian.PutUint64(buf[len(grantPrefix):], id)
	return buf
}

func grantIndexKey(addr common.Address) []byte {
	return append(append([]byte(nil), grantIndexPfx...), addr.Bytes()...)
}

func roleKey(role string) []byte {
	return append(append([]byte(nil), rolePrefix...), role...)
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr.Bytes()...)
}

func kvKey(key []byte) []byte {
	return append(append([]byte(nil), kvPrefix...), key...)
}
