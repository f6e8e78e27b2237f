package utils

import (
	rndm "math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func GetUUID() string {
	return uuid.New().String()
}

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789_ABCDEFGHIJKLMNOPQRSTUVWXYZ")

// GenerateRandomString creates a random alphanumeric string of length n.
func GenerateRandomString(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rndm.Intn(len(letterRunes))]
	}
	return string(b)
}

func ParseFloat(s string) float64 {
	val, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return val
}

func ParseInt(s string) int {
	val, _ := strconv.Atoi(strings.TrimSpace(s))
	return val
}
