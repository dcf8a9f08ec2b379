package secret

import (
	"golang.org/x/crypto/bcrypt"
)

func Hash(key string) (string, error) {
	hashedKey, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashedKey), nil
}
