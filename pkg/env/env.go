package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"testing"

	"github.com/joho/godotenv"
)

var dotEnvMap = map[string]string{}

func init() {
	m, err := godotenv.Read(".env")
	if err != nil {
		// A missing .env is fine; the process environment alone is enough.
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		panic(err)
	}
	dotEnvMap = m
}

func getEnv(key string) string {
	// .env
	value := dotEnvMap[key]
	// os.Getenv
	if v := os.Getenv(key); v != "" {
		value = v
	}
	return value
}

func Default(key, def string) string {
	value := getEnv(key)
	if value == "" {
		return def
	}
	return value
}

func DefaultInt(key string, def int) int {
	value := getEnv(key)
	if value == "" {
		return def
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("`%s` must be an integer, got %q", key, value))
	}
	return i
}

func RequiredNotEmpty(key string) string {
	value := getEnv(key)
	if value == "" {
		if !testing.Testing() {
			panic(fmt.Sprintf("`%s` is not set or is empty", key))
		}
	}
	return value
}
