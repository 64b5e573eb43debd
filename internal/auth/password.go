package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Параметры argon2id.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword возвращает argon2id-хэш пароля и случайную соль.
func HashPassword(password string) (hash, salt []byte, err error) {
	salt = make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("генерация соли: %w", err)
	}
	return derive(password, salt), salt, nil
}

// CheckPassword сравнивает пароль с сохранённым хэшем за постоянное время.
func CheckPassword(password string, hash, salt []byte) bool {
	if len(hash) == 0 || len(salt) == 0 {
		return false
	}
	candidate := derive(password, salt)
	return len(candidate) == len(hash) && subtle.ConstantTimeCompare(candidate, hash) == 1
}

var (
	dummyOnce sync.Once
	dummyHash []byte
	dummySalt []byte
)

// DummyCredential возвращает хэш и соль, не принадлежащие ни одной учётной записи.
// Проверка по ним уравнивает время ответа для неизвестного email.
func DummyCredential() (hash, salt []byte) {
	dummyOnce.Do(func() {
		dummySalt = make([]byte, saltLen)
		if _, err := rand.Read(dummySalt); err != nil {
			dummySalt = []byte("portal-api-dummy")
		}
		dummyHash = derive("portal-api", dummySalt)
	})
	return dummyHash, dummySalt
}

func derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
