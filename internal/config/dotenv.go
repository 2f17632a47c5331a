package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func loadDotEnvFiles(paths ...string) error {
	setByFile := map[string]bool{}
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			continue
		}
		for k, v := range values {
			existing, exists := os.LookupEnv(k)
			if exists && strings.TrimSpace(existing) != "" && !setByFile[k] {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return err
			}
			setByFile[k] = true
		}
	}
	return nil
}
