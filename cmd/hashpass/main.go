// hashpass — утилита для генерации Argon2id хеша пароля специалиста.
// Запуск: go run ./cmd/hashpass ваш_пароль
//
// Результат вставьте в .env как STAFF_PASSWORD_HASH.
package main

import (
	"fmt"
	"os"

	"serotonyl.ru/reading-rewards/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run ./cmd/hashpass <пароль>")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хеш пароля (вставьте в .env как STAFF_PASSWORD_HASH):")
	fmt.Println(hash)
}
