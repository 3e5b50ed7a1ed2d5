package utils

import (
	"math/rand"
	"os"
	"time"

	"github.com/ggeejehd-eng/mj36/utils/dotenv"
)

func IsProdEnv() bool {
	return os.Getenv("MJ36_ENV") == dotenv.ProdEnv
}

// ContainsString returns true iff the provided string slice hay contains string
// needle.
func ContainsString(hay []string, needle string) bool {
	for _, str := range hay {
		if str == needle {
			return true
		}
	}
	return false
}

// RemoveString returns hay with every occurrence of needle removed, preserving
// the relative order of the remaining elements.
func RemoveString(hay []string, needle string) []string {
	res := []string{}
	for _, str := range hay {
		if str != needle {
			res = append(res, str)
		}
	}
	return res
}

// NowMillis returns the current wall clock in unix milliseconds, which is the
// store's native time representation.
func NowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func RandomAlphabetString(length int) string {
	charset := "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
