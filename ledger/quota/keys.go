package quota

import (
	"encoding/hex"
	"fmt"
)

const counterPrefix = "quota/counter"

func counterKey(bucket uint64, addr []byte) []byte {
	return []byte(fmt.Sprintf("%s/%d/%s", counterPrefix, bucket, hex.EncodeToString(addr)))
}
