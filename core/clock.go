package core

import "time"

func now() uint32 {
	return uint32(time.Now().Unix())
}
